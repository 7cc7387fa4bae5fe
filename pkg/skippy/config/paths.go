package config

import (
	"os"
	"path/filepath"
)

// DataLayout is the fixed set of paths under a Skippy data root: one
// config file, one log file, one pid file, one IPC socket, one
// persistent-context file and a memory directory holding two SQLite
// databases.
type DataLayout struct {
	Root          string
	ConfigPath    string
	LogPath       string
	PIDPath       string
	SocketPath    string
	ContextPath   string
	MemoryDBPath  string
	CronDBPath    string
	AttachmentDir string
}

// DefaultRoot returns "~/.skippy", creating nothing on disk.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".skippy"), nil
}

// ResolveLayout builds a DataLayout rooted at root. If root is empty,
// DefaultRoot is used.
func ResolveLayout(root string) (*DataLayout, error) {
	if root == "" {
		var err error
		root, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}
	memDir := filepath.Join(root, "memory")
	return &DataLayout{
		Root:          root,
		ConfigPath:    filepath.Join(root, "skippy.json"),
		LogPath:       filepath.Join(root, "skippy.log"),
		PIDPath:       filepath.Join(root, "daemon.pid"),
		SocketPath:    filepath.Join(root, "skippy.sock"),
		ContextPath:   filepath.Join(root, "context.json"),
		MemoryDBPath:  filepath.Join(memDir, "memory.db"),
		CronDBPath:    filepath.Join(memDir, "cron.db"),
		AttachmentDir: filepath.Join(root, "attachments"),
	}, nil
}

// EnsureDirs creates the data root with its memory and attachments
// subdirectories. It does not create the files themselves; those are
// created lazily by their owning subsystems (Config.Save, memorydb.Open,
// cronscheduler.OpenStore).
func (l *DataLayout) EnsureDirs() error {
	if err := os.MkdirAll(filepath.Dir(l.MemoryDBPath), 0o700); err != nil {
		return err
	}
	return os.MkdirAll(l.AttachmentDir, 0o700)
}
