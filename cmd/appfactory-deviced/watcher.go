package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// watchManifest reloads store whenever the manifest file at store's path is
// written or recreated (editors and config-management tools commonly
// replace a file rather than write it in place), logging every reload and
// every failed reload attempt. It runs until done is closed.
func watchManifest(store *ManifestStore, done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(store.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(store.path)

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := store.Reload(); err != nil {
				log.Warn().Err(err).Str("path", store.path).Msg("failed to reload capability manifest")
				continue
			}
			log.Info().Str("path", store.path).Msg("capability manifest reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("capability manifest watcher error")
		}
	}
}
