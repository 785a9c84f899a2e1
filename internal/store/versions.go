package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guidebook/internal/document"
)

// VersionInfo is one ledger entry: the pointer set identifying the
// archived document, locale and geometry snapshots active at one point
// in a document's history, plus authorship metadata.
type VersionInfo struct {
	ID                int64
	DocumentID        int64
	Lang              string
	DocumentArchiveID int64
	LocaleArchiveID   int64
	GeometryArchiveID *int64
	UserID            int64
	Comment           string
	WrittenAt         time.Time
	Masked            bool
}

// DocumentHistory lists the ledger for a (document, lang), oldest
// first. Masked revisions are dropped unless includeMasked is set
// (moderator views).
func (s *Store) DocumentHistory(ctx context.Context, documentID int64, lang string, includeMasked bool) ([]VersionInfo, error) {
	query := `
		SELECT dv.id, dv.document_id, dv.lang, dv.document_archive_id, dv.document_locales_archive_id,
			dv.document_geometry_archive_id, hm.user_id, hm.comment, hm.written_at, dv.masked
		FROM documents_versions dv
		JOIN history_metadata hm ON hm.id = dv.history_metadata_id
		WHERE dv.document_id = ? AND dv.lang = ?`
	if !includeMasked {
		query += ` AND dv.masked = 0`
	}
	query += ` ORDER BY dv.id`
	rows, err := s.query(ctx, query, documentID, lang)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()
	var versions []VersionInfo
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanVersion(rows *sql.Rows) (VersionInfo, error) {
	var v VersionInfo
	var geomArchiveID sql.NullInt64
	var writtenAt int64
	if err := rows.Scan(&v.ID, &v.DocumentID, &v.Lang, &v.DocumentArchiveID, &v.LocaleArchiveID,
		&geomArchiveID, &v.UserID, &v.Comment, &writtenAt, &v.Masked); err != nil {
		return VersionInfo{}, fmt.Errorf("scan version: %w", err)
	}
	if geomArchiveID.Valid {
		v.GeometryArchiveID = &geomArchiveID.Int64
	}
	v.WrittenAt = time.Unix(writtenAt, 0)
	return v, nil
}

// RevertVersion restores the content of a historical version as a
// brand-new forward edit: new archive rows, new ledger row. History is
// never rewritten. Reverting to the version that is already current for
// the lang is rejected.
func (s *Store) RevertVersion(ctx context.Context, documentID int64, lang string, versionID, userID int64) (int64, error) {
	var docID int64
	var vLang string
	var docArchiveID, localeArchiveID int64
	var geomArchiveID sql.NullInt64
	err := s.queryRow(ctx,
		`SELECT document_id, lang, document_archive_id, document_locales_archive_id, document_geometry_archive_id FROM documents_versions WHERE id = ?`,
		versionID).Scan(&docID, &vLang, &docArchiveID, &localeArchiveID, &geomArchiveID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (docID != documentID || vLang != lang)) {
		return 0, &NotFoundError{What: "version", ID: versionID}
	}
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}

	var latestID int64
	err = s.queryRow(ctx,
		`SELECT id FROM documents_versions WHERE document_id = ? AND lang = ? ORDER BY id DESC LIMIT 1`,
		documentID, lang).Scan(&latestID)
	if err != nil {
		return 0, fmt.Errorf("read latest version: %w", err)
	}
	if latestID == versionID {
		return 0, ErrAlreadyLatest
	}

	var typ, quality, figJSON string
	err = s.queryRow(ctx,
		`SELECT type, quality, figures FROM archive_documents WHERE id = ?`,
		docArchiveID).Scan(&typ, &quality, &figJSON)
	if err != nil {
		return 0, fmt.Errorf("read archived document: %w", err)
	}
	figures, err := document.DecodeFigures(document.Type(typ), figJSON)
	if err != nil {
		return 0, fmt.Errorf("version %d: %w", versionID, err)
	}

	var locale document.Locale
	err = s.queryRow(ctx,
		`SELECT lang, title, summary, description FROM archive_document_locales WHERE id = ?`,
		localeArchiveID).Scan(&locale.Lang, &locale.Title, &locale.Summary, &locale.Description)
	if err != nil {
		return 0, fmt.Errorf("read archived locale: %w", err)
	}

	var geom *document.Geometry
	if geomArchiveID.Valid {
		var geomRaw, detailRaw sql.NullString
		err = s.queryRow(ctx,
			`SELECT geom, geom_detail FROM archive_document_geometries WHERE id = ?`,
			geomArchiveID.Int64).Scan(&geomRaw, &detailRaw)
		if err != nil {
			return 0, fmt.Errorf("read archived geometry: %w", err)
		}
		geom = &document.Geometry{}
		geom.Geom, err = document.DecodeGeom(geomRaw.String)
		if err != nil {
			return 0, fmt.Errorf("version %d: %w", versionID, err)
		}
		geom.GeomDetail, err = document.DecodeGeom(detailRaw.String)
		if err != nil {
			return 0, fmt.Errorf("version %d: %w", versionID, err)
		}
	}

	var currentVersion int64
	err = s.queryRow(ctx,
		`SELECT version FROM documents WHERE document_id = ?`, documentID).Scan(&currentVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{What: "document", ID: documentID}
	}
	if err != nil {
		return 0, fmt.Errorf("read document: %w", err)
	}

	newVersion, _, err := s.UpdateDocument(ctx, documentID, currentVersion, EditInput{
		Figures: figures,
		Quality: document.Quality(quality),
		Locales: []document.Locale{locale},
		Geometry: geom,
		Comment: fmt.Sprintf("reverted to version %d", versionID),
		UserID:  userID,
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// MaskVersion hides one historical revision from non-moderator history
// views. The content stays archived; only the ledger flag changes. The
// latest version of a lang cannot be masked: there must always be a
// visible current state.
func (s *Store) MaskVersion(ctx context.Context, versionID int64) error {
	return s.setVersionMaskTx(ctx, versionID, true)
}

// UnmaskVersion makes a masked revision visible again.
func (s *Store) UnmaskVersion(ctx context.Context, versionID int64) error {
	return s.setVersionMaskTx(ctx, versionID, false)
}

func (s *Store) setVersionMaskTx(ctx context.Context, versionID int64, masked bool) error {
	name := "unmask version"
	if masked {
		name = "mask version"
	}
	tx, start, err := s.beginTx(ctx, name)
	if err != nil {
		return err
	}
	defer s.rollbackTx(tx, name, start)

	var docID int64
	var lang string
	err = tx.QueryRowContext(ctx,
		`SELECT document_id, lang FROM documents_versions WHERE id = ?`,
		versionID).Scan(&docID, &lang)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{What: "version", ID: versionID}
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	if masked {
		var latestID int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM documents_versions WHERE document_id = ? AND lang = ? ORDER BY id DESC LIMIT 1`,
			docID, lang).Scan(&latestID)
		if err != nil {
			return fmt.Errorf("read latest version: %w", err)
		}
		if latestID == versionID {
			return ErrLatestVersion
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents_versions SET masked = ? WHERE id = ?`, masked, versionID); err != nil {
		return fmt.Errorf("set mask: %w", err)
	}
	return s.commitTx(tx, name, start)
}
