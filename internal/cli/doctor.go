// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for driveq.
//
// Command: doctor
// Short:   Check settings, backend reachability and local storage
//
// Health Checks Performed:
//   1. Config Valid      - The config file parses and validates
//   2. Backend Reachable - GET / on the configured backend answers
//   3. Documents         - The document list can be read
//   4. History Writable  - The history database opens
//   5. Log File          - The log directory is writable
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
)

// CheckStatus is the outcome of one health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	default:
		return "fail"
	}
}

// HealthCheck is one line of doctor output.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render formats the check with its status marker and, when it did not
// pass, the suggested fix.
func (c *HealthCheck) Render() string {
	line := fmt.Sprintf("%s %s", RenderStatus(c.Status.String()), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		line += "\n" + MutedStyle.Render("     -> "+c.Fix)
	}
	return line
}

type doctorCheckJSON struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

type doctorJSON struct {
	Checks  []doctorCheckJSON `json:"checks"`
	Passed  int               `json:"passed"`
	Warned  int               `json:"warned"`
	Failed  int               `json:"failed"`
	Healthy bool              `json:"healthy"`
}

func newDoctorCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Check settings, the backend and local storage",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := a.runChecks(cmd.Context())

			var passed, warned, failed int
			for _, c := range checks {
				switch c.Status {
				case CheckPass:
					passed++
				case CheckWarn:
					warned++
				default:
					failed++
				}
			}
			var failure error
			if failed > 0 {
				failure = fmt.Errorf("%d health check(s) failed", failed)
			}

			if asJSON {
				out := doctorJSON{Passed: passed, Warned: warned, Failed: failed, Healthy: failed == 0}
				for _, c := range checks {
					out.Checks = append(out.Checks, doctorCheckJSON{c.Name, c.Status.String(), c.Message, c.Fix})
				}
				resp := NewJSONResponse("doctor", out)
				if failure != nil {
					msg := failure.Error()
					resp.Success, resp.Error = false, &msg
				}
				if err := resp.Write(a.out); err != nil {
					return err
				}
				if failure != nil {
					return &SilentError{Err: failure}
				}
				return nil
			}

			fmt.Fprintln(a.out, TitleStyle.Render("driveq doctor"))
			fmt.Fprintln(a.out, RenderSeparator(41))
			for _, c := range checks {
				fmt.Fprintln(a.out, c.Render())
			}
			fmt.Fprintln(a.out, RenderSeparator(41))

			summary := []string{fmt.Sprintf("%d passed", passed)}
			if warned > 0 {
				summary = append(summary, WarningStyle.Render(fmt.Sprintf("%d warning", warned)))
			}
			if failed > 0 {
				summary = append(summary, ErrorStyle.Render(fmt.Sprintf("%d failed", failed)))
			}
			fmt.Fprintln(a.out, strings.Join(summary, ", "))

			if failure != nil {
				return &SilentError{Err: failure}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func (a *app) runChecks(ctx context.Context) []*HealthCheck {
	checks := []*HealthCheck{a.checkConfig()}

	backend := a.checkBackend(ctx)
	checks = append(checks, backend)
	if backend.Status == CheckPass {
		checks = append(checks, a.checkDocuments(ctx))
	}
	return append(checks, a.checkHistory(), a.checkLogFile())
}

func (a *app) checkConfig() *HealthCheck {
	c := &HealthCheck{Name: "config"}
	p, err := a.configFile()
	if err != nil {
		c.Status, c.Message = CheckWarn, err.Error()
		return c
	}
	if a.cfgErr != nil {
		c.Status = CheckFail
		c.Message = "Config partly ignored: " + a.cfgErr.Error()
		c.Fix = "Fix " + p + " or run: driveq config init --force"
		return c
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		c.Status, c.Message = CheckPass, "Config valid (using defaults)"
		return c
	}
	c.Status, c.Message = CheckPass, "Config valid ("+p+")"
	return c
}

func (a *app) checkBackend(ctx context.Context) *HealthCheck {
	c := &HealthCheck{Name: "backend"}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	start := time.Now()
	err := a.client.Health(ctx)
	switch {
	case err == nil:
		c.Status = CheckPass
		c.Message = fmt.Sprintf("Backend reachable at %s (%s)", a.client.BaseURL(), time.Since(start).Round(time.Millisecond))
	case api.IsNetwork(err):
		c.Status = CheckFail
		c.Message = "Backend unreachable: " + api.UserMessage(err, "")
		c.Fix = "Check the address with: driveq config set api.base_url <url>"
	default:
		c.Status = CheckWarn
		c.Message = "Backend answered with an error: " + api.UserMessage(err, "")
	}
	return c
}

func (a *app) checkDocuments(ctx context.Context) *HealthCheck {
	c := &HealthCheck{Name: "documents"}
	docs, err := a.client.ListDocuments(ctx)
	if err != nil {
		c.Status, c.Message = CheckWarn, "Document list failed: "+api.UserMessage(err, "")
		return c
	}
	if len(docs) == 0 {
		c.Status = CheckWarn
		c.Message = "No documents uploaded"
		c.Fix = "Run: driveq upload <manual.pdf>"
		return c
	}
	c.Status, c.Message = CheckPass, fmt.Sprintf("%d document(s) uploaded", len(docs))
	return c
}

func (a *app) checkHistory() *HealthCheck {
	c := &HealthCheck{Name: "history"}
	hist, err := a.openHistory()
	if err != nil {
		c.Status = CheckFail
		c.Message = "History database unavailable: " + err.Error()
		c.Fix = "Set storage.db_path to a writable location"
		return c
	}
	defer hist.Close()
	c.Status, c.Message = CheckPass, "History database writable ("+hist.Path()+")"
	return c
}

func (a *app) checkLogFile() *HealthCheck {
	c := &HealthCheck{Name: "log"}
	p := a.cfg.LogPath()
	if p == "stderr" {
		c.Status, c.Message = CheckPass, "Logging to stderr"
		return c
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		c.Status, c.Message = CheckWarn, "Log directory unavailable: "+err.Error()
		return c
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		c.Status = CheckWarn
		c.Message = "Log directory not writable: " + err.Error()
		c.Fix = "Set logging.file to a writable path, or to stderr"
		return c
	}
	os.Remove(probe)
	c.Status, c.Message = CheckPass, "Log file "+p
	return c
}
