package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// FileDownloadTool downloads a URL to disk. Progress reporting math is
// explicitly out of scope; this tool downloads synchronously and
// reports only the final byte count.
type FileDownloadTool struct {
	Client *http.Client
}

func NewFileDownloadTool() *FileDownloadTool {
	return &FileDownloadTool{Client: &http.Client{Timeout: 2 * time.Minute}}
}

func (t *FileDownloadTool) Name() string { return "file_download" }
func (t *FileDownloadTool) Init() error  { return nil }

func (t *FileDownloadTool) Run(ctx context.Context, args map[string]any) toolregistry.Result {
	url, _ := args["url"].(string)
	dest, _ := args["dest"].(string)
	if url == "" || dest == "" {
		return toolregistry.Failf("file_download: missing required argument 'url' or 'dest'")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return toolregistry.Fail(err)
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return toolregistry.Fail(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return toolregistry.Failf("file_download: server returned %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return toolregistry.Fail(err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return toolregistry.Fail(err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return toolregistry.Fail(fmt.Errorf("writing %s: %w", dest, err))
	}
	return toolregistry.OK(map[string]any{"dest": dest, "bytes": n})
}

func (t *FileDownloadTool) Context() string {
	return "run(url: string, dest: string) -> {dest, bytes}. Downloads a URL to a local path."
}
