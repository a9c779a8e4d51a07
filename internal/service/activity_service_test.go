package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActivityRecorderMasksSensitiveMetadata(t *testing.T) {
	repo := &memoryActivityRepo{}
	recorder := NewActivityRecorder(repo, testLogger())

	err := recorder.Record(context.Background(), ActivityEntry{
		Actor:      ActivityActor{ID: 1, Role: " Teacher "},
		Action:     "Submission.Graded",
		EntityType: "Submission",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"student_email": "student@example.com",
			"reset_token":   "abc",
			"score":         90.0,
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	entry := repo.entries[0]
	require.Equal(t, "teacher", entry.ActorRole)
	require.Equal(t, "submission.graded", entry.Action)
	require.Equal(t, "submission", entry.EntityType)
	require.Equal(t, "***", entry.Metadata["student_email"])
	require.Equal(t, "***", entry.Metadata["reset_token"])
	require.Equal(t, 90.0, entry.Metadata["score"])
}

func TestActivityRecorderRequiresActionAndEntity(t *testing.T) {
	repo := &memoryActivityRepo{}
	recorder := NewActivityRecorder(repo, testLogger())

	require.Error(t, recorder.Record(context.Background(), ActivityEntry{Action: " ", EntityType: "submission"}))
	require.Error(t, recorder.Record(context.Background(), ActivityEntry{Action: "graded"}))
	require.Empty(t, repo.entries)

	require.NoError(t, recorder.Record(context.Background(), ActivityEntry{Action: "graded", EntityType: "submission"}))
	require.Equal(t, "system", repo.entries[0].ActorRole)
}
