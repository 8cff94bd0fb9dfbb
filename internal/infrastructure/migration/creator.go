package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var fileTemplate = template.Must(template.New("migration").Parse(`-- {{.Name}}{{if .Rollback}} (rollback){{end}}
-- Created: {{.Created}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

`))

// MigrationFile is a created up/down pair
type MigrationFile struct {
	Version  int
	Name     string
	UpPath   string
	DownPath string
}

// CreateMigration writes the next sequentially numbered up/down pair
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, fmt.Errorf("invalid migration name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	version := 1
	if n := len(existing); n > 0 {
		version = existing[n-1].Version + 1
	}

	stem := fmt.Sprintf("%06d_%s", version, base)
	mf := &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   filepath.Join(dir, stem+".up.sql"),
		DownPath: filepath.Join(dir, stem+".down.sql"),
	}
	created := time.Now().Format(time.RFC3339)

	if err := writeMigrationFile(mf.UpPath, name, description, created, false); err != nil {
		return nil, err
	}
	if err := writeMigrationFile(mf.DownPath, name, description, created, true); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeMigrationFile(path, name, description, created string, rollback bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return fileTemplate.Execute(f, map[string]any{
		"Name":        name,
		"Description": description,
		"Created":     created,
		"Rollback":    rollback,
	})
}

// sanitizeName lowercases and collapses separators into single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// Entry is one migration version found in a source
type Entry struct {
	Version int
	Name    string
	HasDown bool
}

// ListMigrations returns the versions in fsys ordered ascending
func ListMigrations(fsys fs.FS) ([]Entry, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Entry)
	for _, file := range files {
		stem, isUp := strings.CutSuffix(file, ".up.sql")
		if !isUp {
			var isDown bool
			if stem, isDown = strings.CutSuffix(file, ".down.sql"); !isDown {
				continue
			}
		}
		num, rest, ok := strings.Cut(stem, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		e, found := byVersion[version]
		if !found {
			e = &Entry{Version: version, Name: rest}
			byVersion[version] = e
		}
		if !isUp {
			e.HasDown = true
		}
	}

	entries := make([]Entry, 0, len(byVersion))
	for _, e := range byVersion {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}
