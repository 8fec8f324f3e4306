// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch uploads manuals dropped into a folder.
//
// A Watcher listens for fsnotify events under a directory, waits until a
// file has been quiet for the debounce window, validates it with the same
// upload policy the chat UI uses, skips content the ledger has already
// seen, and uploads the rest no faster than the configured rate.
//
// Every decision is reported as an Event so the caller can print or log it:
//
//	w, err := watch.New(watch.Config{Dir: dir, Policy: policy}, client, store)
//	if err != nil {
//	    return err
//	}
//	w.OnEvent(func(ev watch.Event) { fmt.Println(ev) })
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Close()
package watch
