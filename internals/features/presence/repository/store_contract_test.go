package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"crecheku_backend/internals/features/presence/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var contractAt = time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)

func contractDay(n int) time.Time { return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC) }

func justification(day time.Time, reason string) model.PresenceJustificationModel {
	return model.PresenceJustificationModel{
		PresenceJustificationDate:   datatypes.Date(day),
		PresenceJustificationReason: reason,
	}
}

func recordOf(t *testing.T, s Store, day time.Time, child string) model.PresenceRecordModel {
	t.Helper()
	sh, err := s.LoadSheet(context.Background(), day)
	require.NoError(t, err)
	for _, r := range sh.Records {
		if r.PresenceRecordChildID == child {
			return r
		}
	}
	t.Fatalf("child %s not on sheet", child)
	return model.PresenceRecordModel{}
}

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("GetOrCreateOnce", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(4)

		sh, created, err := s.GetOrCreate(ctx, day, []string{"c2", "c1", "c1", " "}, contractAt)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, model.SheetStatusPendingStaff, sh.PresenceSheetStatus)

		again, created, err := s.GetOrCreate(ctx, day, []string{"c3"}, contractAt)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, sh.PresenceSheetID, again.PresenceSheetID)

		full, err := s.LoadSheet(ctx, day)
		require.NoError(t, err)
		require.Len(t, full.Records, 2)
		assert.Equal(t, "c1", full.Records[0].PresenceRecordChildID)
		assert.Equal(t, "c2", full.Records[1].PresenceRecordChildID)
		for _, r := range full.Records {
			assert.False(t, r.PresenceRecordPresent)
			assert.Nil(t, r.Justification)
		}
	})

	t.Run("ConcurrentGetOrCreate", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(5)

		const n = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[uuid.UUID]struct{}{}
			creates int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sh, created, err := s.GetOrCreate(ctx, day, []string{"a", "b", "c"}, contractAt)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[sh.PresenceSheetID] = struct{}{}
				if created {
					creates++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 1)
		assert.Equal(t, 1, creates)
		st, err := s.FindSheet(ctx, day)
		require.NoError(t, err)
		assert.EqualValues(t, 3, st.RecordCount)
	})

	t.Run("FindSheetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindSheet(ctx, contractDay(6))
		assert.True(t, errors.Is(err, model.ErrNotFound))
		assert.Equal(t, model.ReasonSheetNotFound, model.ReasonOf(err))
	})

	t.Run("TopUpLeavesFilledSheet", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(7)
		_, _, err := s.GetOrCreate(ctx, day, []string{"a"}, contractAt)
		require.NoError(t, err)

		n, err := s.TopUpRecords(ctx, day, []string{"a", "b"}, contractAt)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = s.TopUpRecords(ctx, contractDay(8), []string{"a"}, contractAt)
		assert.Equal(t, model.ReasonSheetNotFound, model.ReasonOf(err))
	})

	t.Run("ValidationAndJustification", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(11)
		_, _, err := s.GetOrCreate(ctx, day, []string{"c1", "c2", "c3"}, contractAt)
		require.NoError(t, err)

		// nothing to justify before staff validation
		c2 := recordOf(t, s, day, "c2")
		_, err = s.AttachJustification(ctx, c2.PresenceRecordID, justification(day, "fever"), contractAt)
		assert.Equal(t, model.ReasonNotStaffValidated, model.ReasonOf(err))

		_, err = s.ApplyValidation(ctx, day, []string{"c1", "zz"}, "staff-1", contractAt)
		assert.Equal(t, model.ReasonUnknownChild, model.ReasonOf(err))

		sh, err := s.ApplyValidation(ctx, day, []string{"c1", "c1"}, "staff-1", contractAt)
		require.NoError(t, err)
		assert.Equal(t, model.SheetStatusPendingSecretary, sh.PresenceSheetStatus)
		require.NotNil(t, sh.PresenceSheetValidatedBy)
		assert.Equal(t, "staff-1", *sh.PresenceSheetValidatedBy)
		assert.NotNil(t, sh.PresenceSheetStaffValidatedAt)

		_, err = s.ApplyValidation(ctx, day, nil, "staff-2", contractAt)
		assert.True(t, errors.Is(err, model.ErrConflict))
		assert.Equal(t, model.ReasonAlreadyValidated, model.ReasonOf(err))

		c1 := recordOf(t, s, day, "c1")
		assert.True(t, c1.PresenceRecordPresent)
		_, err = s.AttachJustification(ctx, c1.PresenceRecordID, justification(day, "late"), contractAt)
		assert.Equal(t, model.ReasonRecordPresent, model.ReasonOf(err))

		sh, err = s.AttachJustification(ctx, c2.PresenceRecordID, justification(day, "fever"), contractAt)
		require.NoError(t, err)
		assert.Equal(t, model.SheetStatusPendingSecretary, sh.PresenceSheetStatus)

		_, err = s.AttachJustification(ctx, c2.PresenceRecordID, justification(day, "again"), contractAt)
		assert.Equal(t, model.ReasonAlreadyJustified, model.ReasonOf(err))

		c3 := recordOf(t, s, day, "c3")
		sh, err = s.AttachJustification(ctx, c3.PresenceRecordID, justification(day, "family trip"), contractAt)
		require.NoError(t, err)
		assert.Equal(t, model.SheetStatusValidated, sh.PresenceSheetStatus)
		assert.NotNil(t, sh.PresenceSheetSecretaryValidatedAt)

		full, err := s.LoadSheet(ctx, day)
		require.NoError(t, err)
		require.NotNil(t, full.Records[1].Justification)
		assert.Equal(t, "fever", full.Records[1].Justification.PresenceJustificationReason)
	})

	t.Run("AllPresentCompletesAtValidation", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(12)
		_, _, err := s.GetOrCreate(ctx, day, []string{"c1", "c2"}, contractAt)
		require.NoError(t, err)

		sh, err := s.ApplyValidation(ctx, day, []string{"c1", "c2"}, "staff-1", contractAt)
		require.NoError(t, err)
		assert.Equal(t, model.SheetStatusValidated, sh.PresenceSheetStatus)
		assert.NotNil(t, sh.PresenceSheetSecretaryValidatedAt)
	})

	t.Run("ConcurrentValidationSingleWinner", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(14)
		_, _, err := s.GetOrCreate(ctx, day, []string{"c1", "c2", "c3"}, contractAt)
		require.NoError(t, err)

		const n = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			winners   []string
			conflicts int
		)
		for i := 0; i < n; i++ {
			staff := fmt.Sprintf("staff-%d", i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.ApplyValidation(ctx, day, []string{"c1"}, staff, contractAt)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, staff)
				case model.ReasonOf(err) == model.ReasonAlreadyValidated:
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		require.Len(t, winners, 1)
		assert.Equal(t, n-1, conflicts)

		full, err := s.LoadSheet(ctx, day)
		require.NoError(t, err)
		require.NotNil(t, full.PresenceSheetValidatedBy)
		assert.Equal(t, winners[0], *full.PresenceSheetValidatedBy)
		assert.True(t, full.Records[0].PresenceRecordPresent)
		assert.False(t, full.Records[1].PresenceRecordPresent)
	})

	t.Run("ConcurrentJustificationsSameSheet", func(t *testing.T) {
		s := newStore(t)
		day := contractDay(15)
		children := []string{"c01", "c02", "c03", "c04", "c05", "c06", "c07", "c08"}
		_, _, err := s.GetOrCreate(ctx, day, children, contractAt)
		require.NoError(t, err)
		_, err = s.ApplyValidation(ctx, day, nil, "staff-1", contractAt)
		require.NoError(t, err)

		full, err := s.LoadSheet(ctx, day)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			completed int
		)
		for _, r := range full.Records {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				sh, err := s.AttachJustification(ctx, id, justification(day, "trip"), contractAt)
				if !assert.NoError(t, err) {
					return
				}
				if sh.PresenceSheetStatus == model.SheetStatusValidated {
					mu.Lock()
					completed++
					mu.Unlock()
				}
			}(r.PresenceRecordID)
		}
		wg.Wait()

		// only the last justification observes zero unresolved absences
		assert.Equal(t, 1, completed)
		st, err := s.FindSheet(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, model.SheetStatusValidated, st.Sheet.PresenceSheetStatus)
		assert.NotNil(t, st.Sheet.PresenceSheetSecretaryValidatedAt)
	})

	t.Run("JustifyRacingValidationNeverTouchesPresent", func(t *testing.T) {
		s := newStore(t)
		children := []string{"c1", "c2", "c3"}

		for round := 0; round < 20; round++ {
			day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, round)
			_, _, err := s.GetOrCreate(ctx, day, children, contractAt)
			require.NoError(t, err)
			full, err := s.LoadSheet(ctx, day)
			require.NoError(t, err)

			var wg sync.WaitGroup
			start := make(chan struct{})
			wg.Add(1 + len(full.Records))
			go func() {
				defer wg.Done()
				<-start
				_, err := s.ApplyValidation(ctx, day, children, "staff-1", contractAt)
				assert.NoError(t, err)
			}()
			for _, r := range full.Records {
				go func(id uuid.UUID) {
					defer wg.Done()
					<-start
					_, err := s.AttachJustification(ctx, id, justification(day, "late"), contractAt)
					// before validation: not yet validated; after: the child is present
					if assert.Error(t, err) {
						reason := model.ReasonOf(err)
						assert.Contains(t, []model.Reason{model.ReasonNotStaffValidated, model.ReasonRecordPresent}, reason)
					}
				}(r.PresenceRecordID)
			}
			close(start)
			wg.Wait()

			after, err := s.LoadSheet(ctx, day)
			require.NoError(t, err)
			assert.Equal(t, model.SheetStatusValidated, after.PresenceSheetStatus)
			for _, r := range after.Records {
				assert.True(t, r.PresenceRecordPresent)
				assert.Nil(t, r.Justification, "present child %s got a justification", r.PresenceRecordChildID)
			}
		}
	})

	t.Run("UnknownRecord", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AttachJustification(ctx, uuid.New(), justification(contractDay(13), "x"), contractAt)
		assert.Equal(t, model.ReasonRecordNotFound, model.ReasonOf(err))
	})
}
