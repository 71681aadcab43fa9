package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatInfo(w io.Writer, info *ObjectInfo) error
	FormatHealth(w io.Writer, result *HealthResult) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

const timeLayout = "2006-01-02 15:04:05"

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats upload results as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Uploaded: %s -> %s (%s)\n", r.LocalPath, r.Key, formatSize(r.Size))
			if r.ETag != "" {
				_, _ = fmt.Fprintf(w, "  ETag: %s\n", r.ETag)
			}
		}
	}
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.Key, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.Key, result.LocalPath, formatSize(result.Size))
	}
	if result.ETag != "" {
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	}
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Key, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.Key)
		}
	}
	return nil
}

// FormatList formats list results as a table.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No files found")
		return nil
	}

	maxKeyLen := 3 // "KEY"
	for i := range result.Items {
		maxKeyLen = max(maxKeyLen, len(result.Items[i].Key))
	}
	maxKeyLen = min(maxKeyLen, 60)

	_, _ = fmt.Fprintf(w, "%-*s  %10s  %-24s  %s\n", maxKeyLen, "KEY", "SIZE", "TYPE", "MODIFIED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n",
		strings.Repeat("-", maxKeyLen), strings.Repeat("-", 10), strings.Repeat("-", 24), strings.Repeat("-", 19))

	for i := range result.Items {
		item := &result.Items[i]
		_, _ = fmt.Fprintf(w, "%-*s  %10s  %-24s  %s\n",
			maxKeyLen,
			truncate(item.Key, maxKeyLen),
			formatSize(item.Size),
			truncate(item.ContentType, 24),
			formatTime(item.LastModified),
		)
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\n%d file(s) (%s total)\n", len(result.Items), formatSize(result.TotalSize()))
	}
	return nil
}

// FormatInfo formats object metadata as human-readable text.
func (f *HumanFormatter) FormatInfo(w io.Writer, info *ObjectInfo) error {
	_, _ = fmt.Fprintf(w, "Key:           %s\n", info.Key)
	_, _ = fmt.Fprintf(w, "Size:          %s (%d bytes)\n", formatSize(info.Size), info.Size)
	_, _ = fmt.Fprintf(w, "Content-Type:  %s\n", info.ContentType)
	_, _ = fmt.Fprintf(w, "Last-Modified: %s\n", formatTime(info.LastModified))
	if info.ETag != "" {
		_, _ = fmt.Fprintf(w, "ETag:          %s\n", info.ETag)
	}
	return nil
}

// FormatHealth formats a health check result as human-readable text.
func (f *HumanFormatter) FormatHealth(w io.Writer, result *HealthResult) error {
	_, _ = fmt.Fprintf(w, "%s: %s\n", result.Endpoint, result.Status)
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
// The default profile is marked with an asterisk.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	maxNameLen := 4 // "NAME"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
	}
	maxNameLen = min(maxNameLen, 20)

	_, _ = fmt.Fprintf(w, "  %-*s  %s\n", maxNameLen, "NAME", "ENDPOINT")
	_, _ = fmt.Fprintf(w, "  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", 8))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %-*s  %s\n", marker, maxNameLen, truncate(p.Name, maxNameLen), p.Endpoint)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprint(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	if profile.Timeout > 0 {
		_, _ = fmt.Fprintf(w, "Timeout:  %s\n", profile.Timeout)
	}
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type jsonResult struct {
		LocalPath    string     `json:"local_path"`
		Key          string     `json:"key,omitempty"`
		Size         int64      `json:"size,omitempty"`
		ContentType  string     `json:"contentType,omitempty"`
		LastModified *time.Time `json:"lastModified,omitempty"`
		ETag         string     `json:"etag,omitempty"`
		Error        string     `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{LocalPath: r.LocalPath}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.Key = r.Key
			jr.Size = r.Size
			jr.ContentType = r.ContentType
			jr.ETag = r.ETag
			if !r.LastModified.IsZero() {
				jr.LastModified = &r.LastModified
			}
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatDelete formats delete results as JSON.
func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type jsonResult struct {
		Key     string `json:"key"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{Key: r.Key, Deleted: r.Deleted}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

// FormatInfo formats object metadata as JSON.
func (f *JSONFormatter) FormatInfo(w io.Writer, info *ObjectInfo) error {
	return writeJSON(w, info)
}

// FormatHealth formats a health check result as JSON.
func (f *JSONFormatter) FormatHealth(w io.Writer, result *HealthResult) error {
	return writeJSON(w, result)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

type jsonProfile struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Timeout  string `json:"timeout,omitempty"`
	Default  bool   `json:"default"`
}

func toJSONProfile(p *Profile, isDefault bool) jsonProfile {
	jp := jsonProfile{Name: p.Name, Endpoint: p.Endpoint, Default: isDefault}
	if p.Timeout > 0 {
		jp.Timeout = p.Timeout.String()
	}
	return jp
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		output.Profiles[i] = toJSONProfile(&profiles[i], profiles[i].Name == defaultName)
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	return writeJSON(w, toJSONProfile(&profile, isDefault))
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
