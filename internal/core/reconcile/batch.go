package reconcile

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// MaxEntryBytes caps how much of a single archive entry is read.
const MaxEntryBytes = 32 << 20

// ReconcileBatch unpacks a ZIP archive and reconciles every entry independently,
// in archive order. Entry failures are reported in the BatchReport; only an
// unreadable container fails the call.
func (o *Orchestrator) ReconcileBatch(ctx context.Context, archive entity.RawArtifact, userID uuid.UUID) (*entity.BatchReport, error) {
	logger := common.LoggerFromContext(ctx, o.logger).With("origin", archive.OriginName)

	zr, err := zip.NewReader(bytes.NewReader(archive.Data), int64(len(archive.Data)))
	if err != nil {
		logger.Warn("reconcile.batch.unreadable", "error", err)
		return nil, common.NewIngestFailure(constants.ReasonExtractionFailed, constants.StageExtraction, archive.OriginName,
			"archive container is unreadable", err)
	}

	rep := &entity.BatchReport{Accepted: []entity.TransactionCandidate{}, Rejected: []entity.RejectedEntry{}}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rep.TotalEntries++

		c, err := o.reconcileEntry(ctx, f, userID)
		if err != nil {
			rep.Rejected = append(rep.Rejected, rejection(f.Name, err))
			continue
		}
		rep.Accepted = append(rep.Accepted, *c)
	}

	logger.Info("reconcile.batch.done",
		"total", rep.TotalEntries,
		"accepted", len(rep.Accepted),
		"rejected", len(rep.Rejected),
	)
	return rep, nil
}

func (o *Orchestrator) reconcileEntry(ctx context.Context, f *zip.File, userID uuid.UUID) (*entity.TransactionCandidate, error) {
	mimeType := constants.MIMEFromExt(path.Ext(f.Name))
	mt, ok := constants.MediaTypeFromMIME(mimeType)
	if !ok || mt == constants.ARCHIVE {
		msg := "unknown file extension"
		if ok {
			msg = "nested archives are not supported"
		}
		o.recordUsage(ctx, userID, false)
		return nil, common.NewIngestFailure(constants.ReasonUnsupportedMediaType, constants.StageExtraction, f.Name, msg, nil)
	}

	data, err := readEntry(f)
	if err != nil {
		o.recordUsage(ctx, userID, false)
		return nil, common.NewIngestFailure(constants.ReasonMalformedArchiveEntry, constants.StageExtraction, f.Name, "", err)
	}

	return o.Reconcile(ctx, entity.RawArtifact{Data: data, MIMEType: mimeType, OriginName: f.Name}, userID)
}

// readEntry reads a whole entry; checksum and format errors surface here.
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", MaxEntryBytes)
	}
	return data, nil
}

func rejection(name string, err error) entity.RejectedEntry {
	if f, ok := common.AsIngestFailure(err); ok {
		return entity.RejectedEntry{EntryName: name, Reason: f.Reason, Message: f.Error()}
	}
	return entity.RejectedEntry{EntryName: name, Reason: constants.ReasonMalformedArchiveEntry, Message: err.Error()}
}
