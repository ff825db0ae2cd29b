// Package download serves stored resources to holders of a download token.
//
// A request moves through token validation, record lookup, availability check,
// object fetch and counter increment before the object is streamed back. Every
// step can end the request early; unknown tokens and resources without an
// object are reported identically so tokens cannot be probed.
package download

import (
	"context"
	"regexp"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/blob"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/cryptoutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/rowstore"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// Resource table layout.
const (
	Table            = "resources"
	ColToken         = "token"
	ColStoragePath   = "storage_path"
	ColDisplayName   = "display_name"
	ColDownloadCount = "download_count"
	ColCreatedAt     = "created_at"
)

// Outcomes reported to OnOutcome.
const (
	OutcomeServed       = "served"
	OutcomeInvalidToken = "invalid_token"
	OutcomeNotFound     = "not_found"
	OutcomeUnavailable  = "unavailable"
	OutcomeStoreError   = "store_error"
	OutcomeFetchError   = "fetch_error"
	OutcomeCounterError = "counter_error"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f-]{36}$`)

// ValidToken reports whether s has the shape of a download token: 36 lowercase
// hex digits and hyphens.
func ValidToken(s string) bool { return tokenPattern.MatchString(s) }

// Download is an opened resource ready to stream. Close the Object body.
type Download struct {
	Object   *blob.Object
	Filename string
}

type Service struct {
	rows  rowstore.Store
	blobs blob.Store

	// OnOutcome is called once per Open with the final outcome, and once more
	// with OutcomeCounterError when only the increment failed.
	OnOutcome func(outcome string)
}

func NewService(rows rowstore.Store, blobs blob.Store) *Service {
	return &Service{rows: rows, blobs: blobs}
}

func (s *Service) report(outcome string) {
	if s.OnOutcome != nil {
		s.OnOutcome(outcome)
	}
}

// Open resolves token to its resource, fetches the object and counts the
// download. Errors carry an xerrors.Kind: validation for malformed tokens,
// not found for unknown or unavailable resources, store or unexpected for
// backend failures.
func (s *Service) Open(ctx context.Context, token string) (*Download, error) {
	if !ValidToken(token) {
		s.report(OutcomeInvalidToken)
		return nil, xerrors.NewKind(xerrors.KindValidation, "invalid download token")
	}
	logger := log.FromContext(ctx).With("token_fp", cryptoutil.Fingerprint(token))

	res, err := s.rows.Select(ctx, Table, rowstore.Filter{ColToken: token}, rowstore.SelectOptions{Limit: 1})
	if err != nil {
		s.report(OutcomeStoreError)
		err = xerrors.Wrap(err, "lookup resource")
		logger.Error(ctx, err, "resource lookup failed")
		return nil, err
	}
	row := res.First()
	if row == nil {
		s.report(OutcomeNotFound)
		return nil, xerrors.NewKind(xerrors.KindNotFound, "resource not found")
	}

	storagePath := row[ColStoragePath]
	if storagePath == "" {
		s.report(OutcomeUnavailable)
		logger.Info(ctx, "resource has no stored object yet", "resource_id", row[rowstore.IDColumn])
		return nil, xerrors.NewKind(xerrors.KindNotFound, "resource not yet available")
	}

	obj, err := s.blobs.Fetch(ctx, storagePath)
	if err != nil {
		s.report(OutcomeFetchError)
		err = xerrors.Wrap(err, "fetch resource object")
		logger.Error(ctx, err, "resource fetch failed",
			"storage_path", storagePath,
			"error_code", blob.ErrorCode(err),
		)
		return nil, err
	}

	// a lost increment is tolerated, a failed download is not
	if _, err := s.rows.Increment(ctx, Table, rowstore.Filter{ColToken: token}, ColDownloadCount, 1); err != nil {
		s.report(OutcomeCounterError)
		logger.Warn(ctx, "download counter increment failed",
			"resource_id", row[rowstore.IDColumn],
			"err", err.Error(),
		)
	}

	s.report(OutcomeServed)
	return &Download{
		Object:   obj,
		Filename: filenameFor(row[ColDisplayName], storagePath),
	}, nil
}
