package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joeblew999/plat-mapview/internal/service"
)

// CatalogTable mirrors the layer catalogue for SQL queries.
const CatalogTable = "catalog_layers"

const createCatalogTable = `CREATE TABLE IF NOT EXISTS ` + CatalogTable + ` (
	id        VARCHAR PRIMARY KEY,
	kind      VARCHAR NOT NULL,
	thema     VARCHAR,
	label     VARCHAR NOT NULL,
	type      VARCHAR,
	url       VARCHAR,
	geom_type VARCHAR,
	abstract  VARCHAR,
	position  INTEGER NOT NULL
)`

// Kinds stored in the kind column.
const (
	KindBase    = "base"
	KindOverlay = "overlay"
)

// SyncCatalog replaces the mirror table contents with the current map
// description in one transaction.
func SyncCatalog(ctx context.Context, conn *sql.DB, desc service.MapDescription) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync catalog: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createCatalogTable); err != nil {
		return fmt.Errorf("sync catalog: create table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+CatalogTable); err != nil {
		return fmt.Errorf("sync catalog: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+CatalogTable+
		" (id, kind, thema, label, type, url, geom_type, abstract, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sync catalog: prepare: %w", err)
	}
	defer stmt.Close()

	insert := func(kind string, layers []service.LayerDescription) error {
		for i, l := range layers {
			thema := ""
			if kind == KindOverlay {
				thema = l.ThemeName()
			}
			if _, err := stmt.ExecContext(ctx, l.ID, kind, thema, l.Label, l.Type, l.URL, l.GeomType, l.Abstract, i); err != nil {
				return fmt.Errorf("sync catalog: insert %q: %w", l.ID, err)
			}
		}
		return nil
	}
	if err := insert(KindBase, desc.BaseLayers); err != nil {
		return err
	}
	if err := insert(KindOverlay, desc.Overlays); err != nil {
		return err
	}
	return tx.Commit()
}

// MirrorCatalog keeps the mirror table in step with the catalogue until ctx
// is cancelled.
func MirrorCatalog(ctx context.Context, conn *sql.DB, cat *service.CatalogService, bus *service.EventBus) error {
	if err := SyncCatalog(ctx, conn, cat.Description()); err != nil {
		return err
	}
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			if ev.Resource != service.ResourceLayers {
				continue
			}
			if err := SyncCatalog(ctx, conn, cat.Description()); err != nil {
				log.WithError(err).Warn("Catalog mirror out of date")
				continue
			}
			log.WithField("layer", ev.ID).Debugf("Catalog mirror updated after %s", ev.Action)
		}
	}
}
