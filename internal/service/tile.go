package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeblew999/plat-mapview/internal/logging"
	"github.com/joeblew999/plat-mapview/internal/pmtiles"
)

var tileLog = logging.NewLogger("tiles")

// TileService lists the PMTiles archives served under /tiles/.
type TileService struct {
	tilesDir string
}

// NewTileService creates a new tile service.
func NewTileService(dataDir string) *TileService {
	return &TileService{
		tilesDir: filepath.Join(dataDir, "tiles"),
	}
}

// List returns all available PMTiles files. Archives with an unreadable
// header are listed with name and size only.
func (s *TileService) List() ([]TileFile, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TileFile{}, nil
		}
		return nil, err
	}

	files := []TileFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pmtiles" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		tf := TileFile{
			Name: entry.Name(),
			Size: formatSize(info.Size()),
			URL:  "/tiles/" + entry.Name(),
		}
		if err := s.describe(&tf); err != nil {
			tileLog.WithField("file", tf.Name).Warnf("read header: %v", err)
		}
		files = append(files, tf)
	}
	return files, nil
}

func (s *TileService) describe(tf *TileFile) error {
	f, err := os.Open(filepath.Join(s.tilesDir, tf.Name))
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := pmtiles.ReadHeader(f)
	if err != nil {
		return err
	}
	b := h.Bound()
	c := h.Center()
	tf.TileType = h.TileType.String()
	tf.MinZoom = int(h.MinZoom)
	tf.MaxZoom = int(h.MaxZoom)
	tf.Bounds = &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	tf.Center = &[2]float64{c.Lon(), c.Lat()}
	return nil
}

// TilesDir returns the path to the tiles directory.
func (s *TileService) TilesDir() string {
	return s.tilesDir
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
