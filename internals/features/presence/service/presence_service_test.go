package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crecheku_backend/internals/features/presence/dto"
	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/features/presence/repository"
	"crecheku_backend/internals/features/presence/roster"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)

const dayStr = "2024-09-02"

type fakeAttachments struct {
	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
	err     error
}

func (f *fakeAttachments) Store(_ context.Context, filename, contentType string, data []byte) (string, map[string]any, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string][]byte{}
	}
	ref := "mem://" + filename
	f.stored[ref] = data
	return ref, map[string]any{"size": len(data), "content_type": contentType}, nil
}

func (f *fakeAttachments) Remove(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, ref)
	f.removed = append(f.removed, ref)
	return nil
}

func newService(t *testing.T, children ...string) (*Service, *repository.MemoryStore) {
	t.Helper()
	if len(children) == 0 {
		children = []string{"A", "B", "C"}
	}
	store := repository.NewMemoryStore()
	svc := New(store, roster.Static(children), &fakeAttachments{})
	svc.Now = func() time.Time { return time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func validated(t *testing.T, svc *Service, present ...string) *dto.SheetView {
	t.Helper()
	_, err := svc.EnsureSheet(context.Background(), day)
	require.NoError(t, err)
	if present == nil {
		present = []string{}
	}
	v, err := svc.Validate(context.Background(), dto.ValidateRequest{Date: dayStr, PresentChildIDs: present, StaffID: "staff1"})
	require.NoError(t, err)
	return v
}

func justify(svc *Service, recordID uuid.UUID, reason string) (*dto.SheetView, error) {
	return svc.Justify(context.Background(), dto.JustifyRequest{
		RecordID:    recordID,
		Date:        dayStr,
		Reason:      reason,
		SecretaryID: "sec1",
	})
}

func TestExampleScenario(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	v, err := svc.EnsureSheet(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusPendingStaff, v.Status)
	require.Len(t, v.Records, 3)
	for _, r := range v.Records {
		assert.False(t, r.Present)
	}

	v, err = svc.Validate(ctx, dto.ValidateRequest{Date: dayStr, PresentChildIDs: []string{"A"}, StaffID: "staff1"})
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusPendingSecretary, v.Status)
	require.NotNil(t, v.ValidatedBy)
	assert.Equal(t, "staff1", *v.ValidatedBy)
	assert.NotNil(t, v.StaffValidatedAt)
	assert.True(t, v.RecordByChild("A").Present)
	assert.False(t, v.RecordByChild("B").Present)
	assert.False(t, v.RecordByChild("C").Present)

	v, err = justify(svc, v.RecordByChild("B").ID, "illness")
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusPendingSecretary, v.Status)
	assert.Nil(t, v.SecretaryValidatedAt)

	v, err = justify(svc, v.RecordByChild("C").ID, "late bus")
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusValidated, v.Status)
	assert.NotNil(t, v.SecretaryValidatedAt)
	assert.Equal(t, dto.Summary{Total: 3, Present: 1, Absent: 2, Justified: 2}, v.Summary)
}

func TestEnsureSheetConcurrentIsIdempotent(t *testing.T) {
	svc, _ := newService(t)

	const n = 32
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := svc.EnsureSheet(context.Background(), day)
			errs[i] = err
			if v != nil {
				ids[i] = v.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	v, err := svc.GetSheet(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, v.Records, 3)
}

func TestReconcileOutcomes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	out, err := svc.Reconcile(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, out)

	out, err = svc.Reconcile(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExisting, out)
}

func TestReconcileRepairsEmptySheet(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, created, err := store.GetOrCreate(ctx, day, nil, day)
	require.NoError(t, err)
	require.True(t, created)

	out, err := svc.Reconcile(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRepaired, out)

	v, err := svc.GetSheet(ctx, day)
	require.NoError(t, err)
	assert.Len(t, v.Records, 3)

	out, err = svc.Reconcile(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExisting, out)
}

// emptyValidatedStore reports a record-less sheet that staff already validated.
type emptyValidatedStore struct {
	repository.Store
	topUps int
}

func (s *emptyValidatedStore) FindSheet(_ context.Context, d time.Time) (*repository.SheetStats, error) {
	sh := model.NewSheet(d, d)
	sh.PresenceSheetStatus = model.SheetStatusPendingSecretary
	return &repository.SheetStats{Sheet: sh, RecordCount: 0}, nil
}

func (s *emptyValidatedStore) TopUpRecords(context.Context, time.Time, []string, time.Time) (int, error) {
	s.topUps++
	return 0, nil
}

func TestReconcileEmptySheetPastStaffNeedsAttention(t *testing.T) {
	store := &emptyValidatedStore{Store: repository.NewMemoryStore()}
	svc := New(store, roster.Static{"A"}, nil)

	out, err := svc.Reconcile(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsAttention, out)
	assert.Zero(t, store.topUps)
}

func TestReconcileEmptyRosterCreatesNothing(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := New(store, roster.Static{}, nil)

	_, err := svc.Reconcile(context.Background(), day)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstream)

	_, err = svc.GetSheet(context.Background(), day)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetSheetNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetSheet(context.Background(), day)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, model.ReasonSheetNotFound, model.ReasonOf(err))
}

func TestValidateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown date", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Validate(ctx, dto.ValidateRequest{Date: dayStr, PresentChildIDs: []string{"A"}, StaffID: "s"})
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Equal(t, model.ReasonSheetNotFound, model.ReasonOf(err))
	})

	t.Run("bad payload", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Validate(ctx, dto.ValidateRequest{Date: "yesterday", StaffID: "s"})
		assert.ErrorIs(t, err, model.ErrInvalid)
		assert.Equal(t, model.ReasonInvalidPayload, model.ReasonOf(err))
	})

	t.Run("unknown child leaves sheet untouched", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.EnsureSheet(ctx, day)
		require.NoError(t, err)

		_, err = svc.Validate(ctx, dto.ValidateRequest{Date: dayStr, PresentChildIDs: []string{"A", "Z"}, StaffID: "s"})
		assert.ErrorIs(t, err, model.ErrInvalid)
		assert.Equal(t, model.ReasonUnknownChild, model.ReasonOf(err))

		v, err := svc.GetSheet(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, model.SheetStatusPendingStaff, v.Status)
		assert.False(t, v.RecordByChild("A").Present)
	})

	t.Run("second validation is a conflict", func(t *testing.T) {
		svc, _ := newService(t)
		validated(t, svc, "A")

		_, err := svc.Validate(ctx, dto.ValidateRequest{Date: dayStr, PresentChildIDs: []string{"B", "C"}, StaffID: "staff2"})
		assert.ErrorIs(t, err, model.ErrConflict)
		assert.Equal(t, model.ReasonAlreadyValidated, model.ReasonOf(err))

		v, err := svc.GetSheet(ctx, day)
		require.NoError(t, err)
		assert.True(t, v.RecordByChild("A").Present)
		assert.False(t, v.RecordByChild("B").Present)
		assert.False(t, v.RecordByChild("C").Present)
		assert.Equal(t, "staff1", *v.ValidatedBy)
	})
}

func TestEveryonePresentCompletesImmediately(t *testing.T) {
	svc, _ := newService(t)
	v := validated(t, svc, "A", "B", "C")
	assert.Equal(t, model.SheetStatusValidated, v.Status)
	assert.NotNil(t, v.StaffValidatedAt)
	assert.NotNil(t, v.SecretaryValidatedAt)
}

func TestJustifyPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("record not found", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := justify(svc, uuid.New(), "sick")
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Equal(t, model.ReasonRecordNotFound, model.ReasonOf(err))
	})

	t.Run("before staff validation", func(t *testing.T) {
		svc, _ := newService(t)
		v, err := svc.EnsureSheet(ctx, day)
		require.NoError(t, err)
		_, err = justify(svc, v.RecordByChild("B").ID, "sick")
		assert.ErrorIs(t, err, model.ErrConflict)
		assert.Equal(t, model.ReasonNotStaffValidated, model.ReasonOf(err))
	})

	t.Run("present record never mutates", func(t *testing.T) {
		svc, _ := newService(t)
		before := validated(t, svc, "A")
		_, err := justify(svc, before.RecordByChild("A").ID, "was here anyway")
		assert.ErrorIs(t, err, model.ErrConflict)
		assert.Equal(t, model.ReasonRecordPresent, model.ReasonOf(err))

		after, err := svc.GetSheet(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("double justification keeps the first", func(t *testing.T) {
		svc, _ := newService(t)
		v := validated(t, svc, "A")
		b := v.RecordByChild("B").ID

		_, err := justify(svc, b, "illness")
		require.NoError(t, err)
		_, err = justify(svc, b, "something else")
		assert.ErrorIs(t, err, model.ErrConflict)
		assert.Equal(t, model.ReasonAlreadyJustified, model.ReasonOf(err))

		after, err := svc.GetSheet(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, "illness", after.RecordByChild("B").Justification.Reason)
	})

	t.Run("missing reason", func(t *testing.T) {
		svc, _ := newService(t)
		v := validated(t, svc, "A")
		_, err := justify(svc, v.RecordByChild("B").ID, "  ")
		assert.ErrorIs(t, err, model.ErrInvalid)
	})
}

func TestCompletionAfterExactlyKJustifications(t *testing.T) {
	children := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	svc, _ := newService(t, children...)
	v := validated(t, svc, "c1")

	absent := children[1:]
	for i, id := range absent {
		got, err := justify(svc, v.RecordByChild(id).ID, "reason")
		require.NoError(t, err)
		if i < len(absent)-1 {
			assert.Equal(t, model.SheetStatusPendingSecretary, got.Status, "after %d of %d", i+1, len(absent))
		} else {
			assert.Equal(t, model.SheetStatusValidated, got.Status)
		}
	}
}

func TestJustifyWithAttachment(t *testing.T) {
	ctx := context.Background()

	t.Run("upload is stored and referenced", func(t *testing.T) {
		svc, _ := newService(t)
		att := svc.Attachments.(*fakeAttachments)
		v := validated(t, svc, "A")

		got, err := svc.Justify(ctx, dto.JustifyRequest{
			RecordID:   v.RecordByChild("B").ID,
			Date:       dayStr,
			Reason:     "doctor",
			Attachment: &dto.AttachmentUpload{Filename: "note.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
		})
		require.NoError(t, err)
		j := got.RecordByChild("B").Justification
		require.NotNil(t, j)
		require.NotNil(t, j.AttachmentRef)
		assert.Equal(t, "mem://note.pdf", *j.AttachmentRef)
		assert.Equal(t, "note.pdf", j.AttachmentMeta["original_name"])
		assert.Contains(t, att.stored, "mem://note.pdf")
	})

	t.Run("ref and upload are exclusive", func(t *testing.T) {
		svc, _ := newService(t)
		v := validated(t, svc, "A")
		ref := "oss://x"
		_, err := svc.Justify(ctx, dto.JustifyRequest{
			RecordID:      v.RecordByChild("B").ID,
			Date:          dayStr,
			Reason:        "doctor",
			AttachmentRef: &ref,
			Attachment:    &dto.AttachmentUpload{Filename: "a.pdf", Data: []byte("x")},
		})
		assert.ErrorIs(t, err, model.ErrInvalid)
	})

	t.Run("too large", func(t *testing.T) {
		svc, _ := newService(t)
		svc.MaxAttachmentBytes = 4
		v := validated(t, svc, "A")
		_, err := svc.Justify(ctx, dto.JustifyRequest{
			RecordID:   v.RecordByChild("B").ID,
			Date:       dayStr,
			Reason:     "doctor",
			Attachment: &dto.AttachmentUpload{Filename: "a.pdf", Data: []byte("12345")},
		})
		assert.Equal(t, model.ReasonAttachmentTooLarge, model.ReasonOf(err))
	})

	t.Run("store outage is upstream and writes nothing", func(t *testing.T) {
		svc, _ := newService(t)
		svc.Attachments.(*fakeAttachments).err = errors.New("bucket down")
		v := validated(t, svc, "A")
		_, err := svc.Justify(ctx, dto.JustifyRequest{
			RecordID:   v.RecordByChild("B").ID,
			Date:       dayStr,
			Reason:     "doctor",
			Attachment: &dto.AttachmentUpload{Filename: "a.pdf", Data: []byte("x")},
		})
		assert.ErrorIs(t, err, model.ErrUpstream)
		assert.True(t, model.IsRetryable(err))

		got, err := svc.GetSheet(ctx, day)
		require.NoError(t, err)
		assert.Nil(t, got.RecordByChild("B").Justification)
	})

	t.Run("rejected justification drops the upload", func(t *testing.T) {
		svc, _ := newService(t)
		att := svc.Attachments.(*fakeAttachments)
		v := validated(t, svc, "A")
		_, err := svc.Justify(ctx, dto.JustifyRequest{
			RecordID:   v.RecordByChild("A").ID,
			Date:       dayStr,
			Reason:     "doctor",
			Attachment: &dto.AttachmentUpload{Filename: "a.pdf", Data: []byte("x")},
		})
		assert.Equal(t, model.ReasonRecordPresent, model.ReasonOf(err))
		assert.Equal(t, []string{"mem://a.pdf"}, att.removed)
		assert.Empty(t, att.stored)
	})
}
