package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
)

// Download fetches url into the store as name. An empty name uses the
// last element of the URL path. Progress lines go to progress when it is
// non-nil.
func (s *Store) Download(ctx context.Context, client *http.Client, url, name string, progress io.Writer) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("files: download request: %w", err)
	}
	if name == "" {
		name = path.Base(req.URL.Path)
	}
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("files: downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("files: download failed: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxFileSize {
		return 0, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, name, resp.ContentLength)
	}

	var body io.Reader = resp.Body
	if progress != nil {
		body = &progressReader{reader: resp.Body, out: progress, total: resp.ContentLength, label: name}
	}
	n, err := s.Add(name, body)
	if progress != nil {
		fmt.Fprintln(progress)
	}
	return n, err
}

// progressReader prints download progress as it is read.
type progressReader struct {
	reader io.Reader
	out    io.Writer
	total  int64
	read   int64
	label  string
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.read += int64(n)
	if pr.total > 0 {
		pct := float64(pr.read) / float64(pr.total) * 100
		fmt.Fprintf(pr.out, "\r  %s: %.1f KB / %.1f KB (%.0f%%)",
			pr.label,
			float64(pr.read)/1024,
			float64(pr.total)/1024,
			pct)
	} else {
		fmt.Fprintf(pr.out, "\r  %s: %.1f KB downloaded", pr.label, float64(pr.read)/1024)
	}
	return n, err
}
