package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
	"github.com/shandysiswandi/govault/internal/vault/entity"
)

const defaultExportURLExpiry = 15 * time.Minute

type ExportInput struct {
	Gate
	IdempotencyKey string `validate:"required,max=128"`
}

type ExportOutput struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`

	// Replayed is set when the result comes from an earlier request with the same key.
	Replayed bool `json:"-"`
}

// ExportVault writes every live credential, decrypted, to object storage and
// hands back a presigned download URL. Retries with the same idempotency key
// return the first result without writing a second file.
func (s *Usecase) ExportVault(ctx context.Context, in ExportInput) (*ExportOutput, error) {
	ctx, span := s.startSpan(ctx, "ExportVault")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if err := s.requireGrant(ctx, in.Gate, stepupentity.ActionTypeExportVault); err != nil {
		return nil, err
	}

	expiry := s.cfg.GetMinute("modules.vault.export_url_expiry")
	if expiry <= 0 {
		expiry = defaultExportURLExpiry
	}

	idemKey := fmt.Sprintf("vault:export:%d:%s", in.UserID, in.IdempotencyKey)
	raw, replayed, err := s.idempotency.Do(ctx, idemKey, func(ctx context.Context) ([]byte, error) {
		out, err := s.export(ctx, in, expiry)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}, idempotency.WithResultTTL(expiry))
	if errors.Is(err, idempotency.ErrInProgress) {
		return nil, goerror.NewBusiness("Export already in progress", goerror.CodeConflict)
	}
	if err != nil {
		var gerr *goerror.Error
		if errors.As(err, &gerr) {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to export vault", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	var out ExportOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.ErrorContext(ctx, "failed to decode stored export", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	out.Replayed = replayed

	return &out, nil
}

func (s *Usecase) export(ctx context.Context, in ExportInput, expiry time.Duration) (*ExportOutput, error) {
	creds, err := s.repoDB.ListCredentials(ctx, in.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list credentials", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	scope := credentialScope(in.UserID)
	items := make([]entity.ExportItem, 0, len(creds))
	for _, c := range creds {
		plain, err := s.sealer.Open(c.Secret, scope)
		if err != nil {
			slog.ErrorContext(ctx, "failed to open credential", "user_id", in.UserID, "credential_id", c.ID, "error", err)
			return nil, goerror.NewServer(err)
		}
		items = append(items, entity.ExportItem{
			ID:        strconv.FormatInt(c.ID, 10),
			Name:      c.Name,
			Username:  c.Username,
			URL:       c.URL,
			Password:  string(plain),
			Notes:     c.Notes,
			CreatedAt: c.CreatedAt,
		})
	}

	now := s.clock.Now()
	body, err := json.Marshal(entity.Export{
		UserID:     strconv.FormatInt(in.UserID, 10),
		ExportedAt: now,
		Items:      items,
	})
	if err != nil {
		return nil, goerror.NewServer(err)
	}

	key := fmt.Sprintf("exports/%d/%d.json", in.UserID, s.uid.Generate())
	if err := s.repoBlob.PutExport(ctx, key, body); err != nil {
		slog.ErrorContext(ctx, "failed to blob put export", "user_id", in.UserID, "key", key, "error", err)
		return nil, goerror.NewServer(err)
	}

	url, err := s.repoBlob.PresignExport(ctx, key, expiry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to blob presign export", "user_id", in.UserID, "key", key, "error", err)
		// the file holds plaintext passwords; do not leave it behind unreachable
		if delErr := s.repoBlob.DeleteExport(context.WithoutCancel(ctx), key); delErr != nil {
			slog.ErrorContext(ctx, "failed to blob delete export", "user_id", in.UserID, "key", key, "error", delErr)
		}
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "vault exported", "user_id", in.UserID, "key", key, "count", len(items))
	s.publishExported(ctx, VaultExportedEvent{
		UserID:     in.UserID,
		Email:      in.Email,
		DeviceID:   in.DeviceID,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		OccurredAt: now,
	})

	return &ExportOutput{
		Key:       key,
		URL:       url,
		Count:     len(items),
		ExpiresAt: now.Add(expiry),
	}, nil
}

func (s *Usecase) publishExported(ctx context.Context, ev VaultExportedEvent) {
	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := s.repoMessaging.PublishVaultExported(ctx, ev); err != nil {
			slog.WarnContext(ctx, "failed to publish vault exported", "user_id", ev.UserID, "error", err)
		}
		return nil
	})
}
