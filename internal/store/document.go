package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"guidebook/internal/document"
)

// Change reports which dimensions of a document an update actually
// touched. Callers use it to decide what to re-render or re-index.
type Change uint8

const (
	ChangeFigures Change = 1 << iota
	ChangeGeometry
	ChangeLocales
)

func (c Change) Has(flag Change) bool { return c&flag != 0 }

func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c.Has(ChangeFigures) {
		parts = append(parts, "figures")
	}
	if c.Has(ChangeGeometry) {
		parts = append(parts, "geom")
	}
	if c.Has(ChangeLocales) {
		parts = append(parts, "lang")
	}
	return strings.Join(parts, "|")
}

// EditInput is the desired state submitted with a create or update.
// Locales are upserted per lang; langs not present are left alone. A nil
// Figures or Geometry keeps the stored value.
type EditInput struct {
	Figures  document.Figures
	Quality  document.Quality
	Locales  []document.Locale
	Geometry *document.Geometry
	Comment  string
	UserID   int64
}

// docRow is the base document record as stored.
type docRow struct {
	id          int64
	typ         document.Type
	version     int64
	protected   bool
	quality     document.Quality
	redirectsTo *int64
	figures     string
}

// CreateDocument inserts a new document with its locales and optional
// geometry, creates its cache-version row, archives the initial state
// and appends one ledger row per locale. Returns the new document id and
// its figure version (always 1).
func (s *Store) CreateDocument(ctx context.Context, typ document.Type, in EditInput) (int64, int64, error) {
	if err := validateEdit(typ, in, true); err != nil {
		return 0, 0, err
	}
	tx, start, err := s.beginTx(ctx, "create document")
	if err != nil {
		return 0, 0, err
	}
	defer s.rollbackTx(tx, "create document", start)

	docID, err := s.createDocumentTx(ctx, tx, typ, in)
	if err != nil {
		return 0, 0, err
	}
	if err := s.commitTx(tx, "create document", start); err != nil {
		return 0, 0, err
	}
	return docID, 1, nil
}

func (s *Store) createDocumentTx(ctx context.Context, tx *sql.Tx, typ document.Type, in EditInput) (int64, error) {
	quality := in.Quality
	if quality == "" {
		quality = document.QualityDraft
	}
	figJSON, err := document.EncodeFigures(typ, in.Figures)
	if err != nil {
		return 0, &ValidationError{Field: "figures", Reason: err.Error()}
	}
	ts := now()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (type, version, protected, quality, figures) VALUES (?, 1, 0, ?, ?)`,
		string(typ), string(quality), figJSON)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}

	// The cache-version row is born with the document and never deleted.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_versions (document_id, version, last_updated) VALUES (?, 1, ?)`,
		docID, ts); err != nil {
		return 0, fmt.Errorf("insert cache version: %w", err)
	}

	docArchiveID, err := s.archiveDocumentTx(ctx, tx, docRow{
		id: docID, typ: typ, version: 1, quality: quality, figures: figJSON,
	})
	if err != nil {
		return 0, err
	}

	localeArchiveIDs := make(map[string]int64, len(in.Locales))
	var langs []string
	for _, loc := range in.Locales {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_locales (document_id, lang, version, title, summary, description) VALUES (?, ?, 1, ?, ?, ?)`,
			docID, loc.Lang, loc.Title, loc.Summary, loc.Description); err != nil {
			return 0, fmt.Errorf("insert locale %s: %w", loc.Lang, err)
		}
		archID, err := s.archiveLocaleTx(ctx, tx, docID, document.Locale{
			Lang: loc.Lang, Version: 1, Title: loc.Title, Summary: loc.Summary, Description: loc.Description,
		})
		if err != nil {
			return 0, err
		}
		localeArchiveIDs[loc.Lang] = archID
		langs = append(langs, loc.Lang)
	}

	var geomArchiveID *int64
	if in.Geometry != nil && (in.Geometry.Geom != nil || in.Geometry.GeomDetail != nil) {
		geomJSON, err := document.EncodeGeom(in.Geometry.Geom)
		if err != nil {
			return 0, &ValidationError{Field: "geometry", Reason: err.Error()}
		}
		detailJSON, err := document.EncodeGeom(in.Geometry.GeomDetail)
		if err != nil {
			return 0, &ValidationError{Field: "geometry", Reason: err.Error()}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_geometries (document_id, version, geom, geom_detail) VALUES (?, 1, ?, ?)`,
			docID, nullString(geomJSON), nullString(detailJSON)); err != nil {
			return 0, fmt.Errorf("insert geometry: %w", err)
		}
		archID, err := s.archiveGeometryTx(ctx, tx, docID, 1, geomJSON, detailJSON)
		if err != nil {
			return 0, err
		}
		geomArchiveID = &archID
	}

	metaID, err := s.insertHistoryMetadataTx(ctx, tx, in.UserID, in.Comment, ts)
	if err != nil {
		return 0, err
	}
	for _, lang := range langs {
		if err := s.insertVersionRowTx(ctx, tx, docID, lang, docArchiveID, localeArchiveIDs[lang], geomArchiveID, metaID); err != nil {
			return 0, err
		}
	}

	if err := s.insertChangeTx(ctx, tx, docID, typ, in.UserID, "created", langs, ts); err != nil {
		return 0, err
	}
	return docID, nil
}

// UpdateDocument applies a new state to an existing document under an
// optimistic version check. The figure version increments only when at
// least one figure field (or the quality) changed; locales and geometry
// advance their own counters. Everything, including the cache-version
// propagation, happens in one transaction.
func (s *Store) UpdateDocument(ctx context.Context, id int64, expectedVersion int64, in EditInput) (int64, Change, error) {
	if err := validateEdit("", in, false); err != nil {
		return 0, 0, err
	}
	tx, start, err := s.beginTx(ctx, "update document")
	if err != nil {
		return 0, 0, err
	}
	defer s.rollbackTx(tx, "update document", start)

	newVersion, change, err := s.updateDocumentTx(ctx, tx, id, expectedVersion, in)
	if err != nil {
		return 0, 0, err
	}
	if err := s.commitTx(tx, "update document", start); err != nil {
		return 0, 0, err
	}
	return newVersion, change, nil
}

func (s *Store) updateDocumentTx(ctx context.Context, tx *sql.Tx, id, expectedVersion int64, in EditInput) (int64, Change, error) {
	cur, err := s.readDocRowTx(ctx, tx, id)
	if err != nil {
		return 0, 0, err
	}
	if cur.redirectsTo != nil {
		return 0, 0, &ValidationError{Field: "document", Reason: "document is redirected and cannot be edited"}
	}
	if cur.protected {
		mod, err := s.isModeratorTx(ctx, tx, in.UserID)
		if err != nil {
			return 0, 0, err
		}
		if !mod {
			return 0, 0, &PermissionError{UserID: in.UserID, Reason: "document is protected"}
		}
	}
	if in.Figures != nil && in.Figures.Kind() != cur.typ {
		return 0, 0, &ValidationError{Field: "figures", Reason: fmt.Sprintf("figures of kind %q on document of type %q", in.Figures.Kind(), cur.typ)}
	}

	newFigJSON := cur.figures
	if in.Figures != nil {
		newFigJSON, err = document.EncodeFigures(cur.typ, in.Figures)
		if err != nil {
			return 0, 0, &ValidationError{Field: "figures", Reason: err.Error()}
		}
	}
	quality := cur.quality
	if in.Quality != "" {
		quality = in.Quality
	}
	figuresChanged := newFigJSON != cur.figures || quality != cur.quality

	// Compare-and-set on the version column. Zero rows affected means
	// somebody else committed first.
	delta := int64(0)
	if figuresChanged {
		delta = 1
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET version = version + ?, quality = ?, figures = ? WHERE document_id = ? AND version = ?`,
		delta, string(quality), newFigJSON, id, expectedVersion)
	if err != nil {
		return 0, 0, fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return 0, 0, &ConcurrencyError{DocumentID: id, Expected: expectedVersion}
	}
	newVersion := expectedVersion + delta

	var docArchiveID int64
	if figuresChanged {
		docArchiveID, err = s.archiveDocumentTx(ctx, tx, docRow{
			id: id, typ: cur.typ, version: newVersion, protected: cur.protected, quality: quality, figures: newFigJSON,
		})
	} else {
		docArchiveID, err = s.latestDocArchiveIDTx(ctx, tx, id, expectedVersion)
	}
	if err != nil {
		return 0, 0, err
	}

	changedLangs, err := s.upsertLocalesTx(ctx, tx, id, in.Locales)
	if err != nil {
		return 0, 0, err
	}

	geomChanged, err := s.updateGeometryTx(ctx, tx, id, in.Geometry)
	if err != nil {
		return 0, 0, err
	}

	var change Change
	if figuresChanged {
		change |= ChangeFigures
	}
	if geomChanged {
		change |= ChangeGeometry
	}
	if len(changedLangs) > 0 {
		change |= ChangeLocales
	}
	if change == 0 {
		// Nothing differed from the stored state: no archives, no
		// ledger rows, no cache bumps.
		return expectedVersion, 0, nil
	}

	langs := changedLangs
	if figuresChanged || geomChanged {
		for _, loc := range in.Locales {
			langs = appendLang(langs, loc.Lang)
		}
		if len(langs) == 0 {
			langs, err = s.documentLangsTx(ctx, tx, id)
			if err != nil {
				return 0, 0, err
			}
		}
	}

	geomArchiveID, err := s.latestGeomArchiveIDTx(ctx, tx, id)
	if err != nil {
		return 0, 0, err
	}

	ts := now()
	metaID, err := s.insertHistoryMetadataTx(ctx, tx, in.UserID, in.Comment, ts)
	if err != nil {
		return 0, 0, err
	}
	for _, lang := range langs {
		localeArchiveID, err := s.latestLocaleArchiveIDTx(ctx, tx, id, lang)
		if err != nil {
			return 0, 0, err
		}
		if err := s.insertVersionRowTx(ctx, tx, id, lang, docArchiveID, localeArchiveID, geomArchiveID, metaID); err != nil {
			return 0, 0, err
		}
	}

	if err := s.insertChangeTx(ctx, tx, id, cur.typ, in.UserID, "updated", langs, ts); err != nil {
		return 0, 0, err
	}
	if err := s.propagateDocumentTx(ctx, tx, id, cur.typ); err != nil {
		return 0, 0, err
	}
	return newVersion, change, nil
}

// upsertLocalesTx applies the submitted locales, bumping and archiving
// only those whose content actually differs. Returns the changed langs.
func (s *Store) upsertLocalesTx(ctx context.Context, tx *sql.Tx, docID int64, locales []document.Locale) ([]string, error) {
	var changed []string
	for _, loc := range locales {
		var curVersion int64
		var cur document.Locale
		err := tx.QueryRowContext(ctx,
			`SELECT version, title, summary, description FROM document_locales WHERE document_id = ? AND lang = ?`,
			docID, loc.Lang).Scan(&curVersion, &cur.Title, &cur.Summary, &cur.Description)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO document_locales (document_id, lang, version, title, summary, description) VALUES (?, ?, 1, ?, ?, ?)`,
				docID, loc.Lang, loc.Title, loc.Summary, loc.Description); err != nil {
				return nil, fmt.Errorf("insert locale %s: %w", loc.Lang, err)
			}
			if _, err := s.archiveLocaleTx(ctx, tx, docID, document.Locale{
				Lang: loc.Lang, Version: 1, Title: loc.Title, Summary: loc.Summary, Description: loc.Description,
			}); err != nil {
				return nil, err
			}
			changed = append(changed, loc.Lang)
		case err != nil:
			return nil, fmt.Errorf("read locale %s: %w", loc.Lang, err)
		default:
			if loc.SameContent(cur) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE document_locales SET version = version + 1, title = ?, summary = ?, description = ? WHERE document_id = ? AND lang = ?`,
				loc.Title, loc.Summary, loc.Description, docID, loc.Lang); err != nil {
				return nil, fmt.Errorf("update locale %s: %w", loc.Lang, err)
			}
			if _, err := s.archiveLocaleTx(ctx, tx, docID, document.Locale{
				Lang: loc.Lang, Version: curVersion + 1, Title: loc.Title, Summary: loc.Summary, Description: loc.Description,
			}); err != nil {
				return nil, err
			}
			changed = append(changed, loc.Lang)
		}
	}
	return changed, nil
}

// updateGeometryTx applies a submitted geometry unless every coordinate
// is within tolerance of the stored one; sub-tolerance submissions keep
// the stored shape, version and archive untouched.
func (s *Store) updateGeometryTx(ctx context.Context, tx *sql.Tx, docID int64, geom *document.Geometry) (bool, error) {
	if geom == nil || (geom.Geom == nil && geom.GeomDetail == nil) {
		return false, nil
	}
	var curVersion int64
	var curGeomRaw, curDetailRaw sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT version, geom, geom_detail FROM document_geometries WHERE document_id = ?`,
		docID).Scan(&curVersion, &curGeomRaw, &curDetailRaw)
	if errors.Is(err, sql.ErrNoRows) {
		geomJSON, err := document.EncodeGeom(geom.Geom)
		if err != nil {
			return false, &ValidationError{Field: "geometry", Reason: err.Error()}
		}
		detailJSON, err := document.EncodeGeom(geom.GeomDetail)
		if err != nil {
			return false, &ValidationError{Field: "geometry", Reason: err.Error()}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_geometries (document_id, version, geom, geom_detail) VALUES (?, 1, ?, ?)`,
			docID, nullString(geomJSON), nullString(detailJSON)); err != nil {
			return false, fmt.Errorf("insert geometry: %w", err)
		}
		if _, err := s.archiveGeometryTx(ctx, tx, docID, 1, geomJSON, detailJSON); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read geometry: %w", err)
	}

	curGeom, err := document.DecodeGeom(curGeomRaw.String)
	if err != nil {
		return false, fmt.Errorf("document %d: %w", docID, err)
	}
	curDetail, err := document.DecodeGeom(curDetailRaw.String)
	if err != nil {
		return false, fmt.Errorf("document %d: %w", docID, err)
	}

	newGeom := curGeom
	geomDiffers := false
	if geom.Geom != nil && !document.GeomWithinTolerance(geom.Geom, curGeom, s.geomTolerance) {
		newGeom = geom.Geom
		geomDiffers = true
	}
	newDetail := curDetail
	detailDiffers := false
	if geom.GeomDetail != nil && !document.GeomWithinTolerance(geom.GeomDetail, curDetail, s.geomTolerance) {
		newDetail = geom.GeomDetail
		detailDiffers = true
	}
	if !geomDiffers && !detailDiffers {
		return false, nil
	}

	geomJSON, err := document.EncodeGeom(newGeom)
	if err != nil {
		return false, &ValidationError{Field: "geometry", Reason: err.Error()}
	}
	detailJSON, err := document.EncodeGeom(newDetail)
	if err != nil {
		return false, &ValidationError{Field: "geometry", Reason: err.Error()}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_geometries SET version = version + 1, geom = ?, geom_detail = ? WHERE document_id = ?`,
		nullString(geomJSON), nullString(detailJSON), docID); err != nil {
		return false, fmt.Errorf("update geometry: %w", err)
	}
	if _, err := s.archiveGeometryTx(ctx, tx, docID, curVersion+1, geomJSON, detailJSON); err != nil {
		return false, err
	}
	return true, nil
}

// MergeDocument marks source as a redirect to target, drops its
// associations and bumps the cache versions of everything either side
// touched. A redirected document is logically dead: it no longer
// appears in queries, associations or propagation closures.
func (s *Store) MergeDocument(ctx context.Context, sourceID, targetID, userID int64) error {
	if sourceID == targetID {
		return &ValidationError{Field: "document", Reason: "cannot merge a document into itself"}
	}
	tx, start, err := s.beginTx(ctx, "merge document")
	if err != nil {
		return err
	}
	defer s.rollbackTx(tx, "merge document", start)

	src, err := s.readDocRowTx(ctx, tx, sourceID)
	if err != nil {
		return err
	}
	dst, err := s.readDocRowTx(ctx, tx, targetID)
	if err != nil {
		return err
	}
	if src.typ != dst.typ {
		return &ValidationError{Field: "document", Reason: "merged documents must have the same type"}
	}
	if src.redirectsTo != nil {
		return &ValidationError{Field: "document", Reason: "source is already redirected"}
	}
	if dst.redirectsTo != nil {
		return &ValidationError{Field: "document", Reason: "target is redirected"}
	}

	// Neighbors must be collected before the edges go away.
	srcNeighbors, err := s.neighborsTx(ctx, tx, sourceID)
	if err != nil {
		return err
	}
	dstNeighbors, err := s.neighborsTx(ctx, tx, targetID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET redirects_to = ? WHERE document_id = ?`, targetID, sourceID); err != nil {
		return fmt.Errorf("redirect document: %w", err)
	}

	ts := now()
	rows, err := tx.QueryContext(ctx,
		`SELECT parent_document_id, child_document_id, parent_document_type, child_document_type FROM associations WHERE parent_document_id = ? OR child_document_id = ?`,
		sourceID, sourceID)
	if err != nil {
		return fmt.Errorf("read associations: %w", err)
	}
	var edges []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.ParentID, &a.ChildID, &a.ParentType, &a.ChildType); err != nil {
			rows.Close()
			return fmt.Errorf("scan association: %w", err)
		}
		edges = append(edges, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("read associations: %w", err)
	}
	rows.Close()
	for _, a := range edges {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM associations WHERE parent_document_id = ? AND child_document_id = ?`,
			a.ParentID, a.ChildID); err != nil {
			return fmt.Errorf("delete association: %w", err)
		}
		if err := s.insertAssociationLogTx(ctx, tx, a, userID, false, ts); err != nil {
			return err
		}
	}

	set := append([]int64{sourceID, targetID}, srcNeighbors...)
	set = append(set, dstNeighbors...)
	if err := s.bumpCacheVersionsTx(ctx, tx, set); err != nil {
		return err
	}
	if err := s.insertChangeTx(ctx, tx, sourceID, src.typ, userID, "merged", nil, ts); err != nil {
		return err
	}
	return s.commitTx(tx, "merge document", start)
}

// GetDocument loads a live document with its locales and geometry.
func (s *Store) GetDocument(ctx context.Context, id int64) (*document.Document, error) {
	var row docRow
	var typ, quality string
	var redirectsTo sql.NullInt64
	err := s.queryRow(ctx,
		`SELECT document_id, type, version, protected, quality, redirects_to, figures FROM documents WHERE document_id = ?`,
		id).Scan(&row.id, &typ, &row.version, &row.protected, &quality, &redirectsTo, &row.figures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{What: "document", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc := &document.Document{
		ID:        row.id,
		Type:      document.Type(typ),
		Version:   row.version,
		Protected: row.protected,
		Quality:   document.Quality(quality),
	}
	if redirectsTo.Valid {
		doc.RedirectsTo = &redirectsTo.Int64
	}
	doc.Figures, err = document.DecodeFigures(doc.Type, row.figures)
	if err != nil {
		return nil, fmt.Errorf("document %d: %w", id, err)
	}

	rows, err := s.query(ctx,
		`SELECT lang, version, title, summary, description FROM document_locales WHERE document_id = ? ORDER BY lang`,
		id)
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var loc document.Locale
		if err := rows.Scan(&loc.Lang, &loc.Version, &loc.Title, &loc.Summary, &loc.Description); err != nil {
			return nil, fmt.Errorf("scan locale: %w", err)
		}
		doc.Locales = append(doc.Locales, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	var geomVersion int64
	var geomRaw, detailRaw sql.NullString
	err = s.queryRow(ctx,
		`SELECT version, geom, geom_detail FROM document_geometries WHERE document_id = ?`,
		id).Scan(&geomVersion, &geomRaw, &detailRaw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read geometry: %w", err)
	}
	if err == nil {
		geom := &document.Geometry{Version: geomVersion}
		geom.Geom, err = document.DecodeGeom(geomRaw.String)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", id, err)
		}
		geom.GeomDetail, err = document.DecodeGeom(detailRaw.String)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", id, err)
		}
		doc.Geometry = geom
	}
	return doc, nil
}

func (s *Store) readDocRowTx(ctx context.Context, tx *sql.Tx, id int64) (docRow, error) {
	var row docRow
	var typ, quality string
	var redirectsTo sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT document_id, type, version, protected, quality, redirects_to, figures FROM documents WHERE document_id = ?`,
		id).Scan(&row.id, &typ, &row.version, &row.protected, &quality, &redirectsTo, &row.figures)
	if errors.Is(err, sql.ErrNoRows) {
		return docRow{}, &NotFoundError{What: "document", ID: id}
	}
	if err != nil {
		return docRow{}, fmt.Errorf("read document: %w", err)
	}
	row.typ = document.Type(typ)
	row.quality = document.Quality(quality)
	if redirectsTo.Valid {
		row.redirectsTo = &redirectsTo.Int64
	}
	return row, nil
}

func (s *Store) archiveDocumentTx(ctx context.Context, tx *sql.Tx, row docRow) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO archive_documents (document_id, type, version, protected, quality, redirects_to, figures) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.id, string(row.typ), row.version, row.protected, string(row.quality), nullInt64(row.redirectsTo), row.figures)
	if err != nil {
		return 0, fmt.Errorf("archive document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("archive document id: %w", err)
	}
	return id, nil
}

func (s *Store) archiveLocaleTx(ctx context.Context, tx *sql.Tx, docID int64, loc document.Locale) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO archive_document_locales (document_id, lang, version, title, summary, description) VALUES (?, ?, ?, ?, ?, ?)`,
		docID, loc.Lang, loc.Version, loc.Title, loc.Summary, loc.Description)
	if err != nil {
		return 0, fmt.Errorf("archive locale %s: %w", loc.Lang, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("archive locale id: %w", err)
	}
	return id, nil
}

func (s *Store) archiveGeometryTx(ctx context.Context, tx *sql.Tx, docID, version int64, geomJSON, detailJSON string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO archive_document_geometries (document_id, version, geom, geom_detail) VALUES (?, ?, ?, ?)`,
		docID, version, nullString(geomJSON), nullString(detailJSON))
	if err != nil {
		return 0, fmt.Errorf("archive geometry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("archive geometry id: %w", err)
	}
	return id, nil
}

func (s *Store) latestDocArchiveIDTx(ctx context.Context, tx *sql.Tx, docID, version int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM archive_documents WHERE document_id = ? AND version = ?`,
		docID, version).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read document archive: %w", err)
	}
	return id, nil
}

func (s *Store) latestLocaleArchiveIDTx(ctx context.Context, tx *sql.Tx, docID int64, lang string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM archive_document_locales WHERE document_id = ? AND lang = ? ORDER BY version DESC LIMIT 1`,
		docID, lang).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read locale archive %s: %w", lang, err)
	}
	return id, nil
}

func (s *Store) latestGeomArchiveIDTx(ctx context.Context, tx *sql.Tx, docID int64) (*int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM archive_document_geometries WHERE document_id = ? ORDER BY version DESC LIMIT 1`,
		docID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read geometry archive: %w", err)
	}
	return &id, nil
}

func (s *Store) insertHistoryMetadataTx(ctx context.Context, tx *sql.Tx, userID int64, comment string, ts int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO history_metadata (user_id, comment, written_at) VALUES (?, ?, ?)`,
		userID, comment, ts)
	if err != nil {
		return 0, fmt.Errorf("insert history metadata: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history metadata id: %w", err)
	}
	return id, nil
}

func (s *Store) insertVersionRowTx(ctx context.Context, tx *sql.Tx, docID int64, lang string, docArchiveID, localeArchiveID int64, geomArchiveID *int64, metaID int64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_versions (document_id, lang, document_archive_id, document_locales_archive_id, document_geometry_archive_id, history_metadata_id) VALUES (?, ?, ?, ?, ?, ?)`,
		docID, lang, docArchiveID, localeArchiveID, nullInt64(geomArchiveID), metaID); err != nil {
		return fmt.Errorf("insert version row: %w", err)
	}
	return nil
}

func (s *Store) documentLangsTx(ctx context.Context, tx *sql.Tx, docID int64) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT lang FROM document_locales WHERE document_id = ? ORDER BY lang`, docID)
	if err != nil {
		return nil, fmt.Errorf("read langs: %w", err)
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("scan lang: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

func validateEdit(typ document.Type, in EditInput, create bool) error {
	if create {
		if !typ.Valid() {
			return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown document type %q", typ)}
		}
		if len(in.Locales) == 0 {
			return &ValidationError{Field: "locales", Reason: "at least one locale is required"}
		}
		if in.Figures != nil && in.Figures.Kind() != typ {
			return &ValidationError{Field: "figures", Reason: fmt.Sprintf("figures of kind %q on document of type %q", in.Figures.Kind(), typ)}
		}
	}
	if in.Quality != "" && !in.Quality.Valid() {
		return &ValidationError{Field: "quality", Reason: fmt.Sprintf("unknown quality %q", in.Quality)}
	}
	seen := make(map[string]bool, len(in.Locales))
	for _, loc := range in.Locales {
		if !document.ValidLang(loc.Lang) {
			return &ValidationError{Field: "locales", Reason: fmt.Sprintf("unknown lang %q", loc.Lang)}
		}
		if loc.Title == "" {
			return &ValidationError{Field: "locales", Reason: fmt.Sprintf("locale %s has an empty title", loc.Lang)}
		}
		if seen[loc.Lang] {
			return &ValidationError{Field: "locales", Reason: fmt.Sprintf("duplicate locale %s", loc.Lang)}
		}
		seen[loc.Lang] = true
	}
	return nil
}

func appendLang(langs []string, lang string) []string {
	for _, l := range langs {
		if l == lang {
			return langs
		}
	}
	return append(langs, lang)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
