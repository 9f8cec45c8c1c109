package vulkan

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/grafo/engine/core"
)

// ShaderWatcher invalidates cached pipelines when their SPIR-V changes on
// disk. onChange receives the shader's base name without the .spv suffix.
type ShaderWatcher struct {
	fsnotify *fsnotify.Watcher
	onChange func(name string)
	done     chan struct{}
}

func NewShaderWatcher(dir string, onChange func(name string)) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		core.LogError("failed to create shader watcher: %s", err.Error())
		return nil, err
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		core.LogError("failed to watch shader dir %s: %s", dir, err.Error())
		return nil, err
	}

	watcher := &ShaderWatcher{
		fsnotify: fsWatch,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go watcher.run()

	core.LogInfo("Watching %s for shader changes.", dir)
	return watcher, nil
}

func (sw *ShaderWatcher) run() {
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			base := filepath.Base(e.Name)
			if !strings.HasSuffix(base, ".spv") {
				continue
			}
			name := strings.TrimSuffix(base, ".spv")
			core.LogDebug("shader %s changed, evicting pipelines", name)
			sw.onChange(name)
		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher: %s", err.Error())
		case <-sw.done:
			return
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	if sw.fsnotify == nil {
		return errors.New("shader watcher already closed")
	}
	close(sw.done)
	err := sw.fsnotify.Close()
	sw.fsnotify = nil
	return err
}
