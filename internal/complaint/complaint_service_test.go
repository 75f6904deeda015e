package complaint_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeReason(t *testing.T) {
	assert.Equal(t, "Spam or scam", complaint.NormalizeReason("spam"))
	assert.Equal(t, "Harassment or bullying", complaint.NormalizeReason(" Harassment "))
	assert.Equal(t, "Other", complaint.NormalizeReason("other"))
	assert.Equal(t, "Other", complaint.NormalizeReason("   "))
	assert.Equal(t, "kept asking for my number", complaint.NormalizeReason(" kept asking for my number "))

	long := strings.Repeat("x", 600)
	assert.Len(t, complaint.NormalizeReason(long), 500)
}

func TestHandleComplaint_StoresGradedReportWithTranscript(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveMessage(ctx, &models.ChatHistory{RoomID: "r", SenderID: "a", Content: "hi"}))
	require.NoError(t, store.SaveMessage(ctx, &models.ChatHistory{RoomID: "r", SenderID: "b", Content: "rude"}))

	svc := complaint.NewService(store)
	c, err := svc.HandleComplaint(ctx, complaint.Report{RoomID: "r", ReporterID: "a", TargetID: "b", Reason: "harassment"})
	require.NoError(t, err)

	assert.Equal(t, "Critical", c.ComplaintType)
	assert.Equal(t, 250, c.Severity)
	assert.Equal(t, "Harassment or bullying", c.Reason)
	assert.Equal(t, []string{"reporter: hi", "reported: rude"}, []string(c.LoggedMessages))

	stored, err := store.GetComplaints(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "new", stored[0].Status)
	assert.Equal(t, "b", stored[0].TargetID)
}

func TestHandleComplaint_TranscriptIsBounded(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for i := 0; i < 60; i++ {
		require.NoError(t, store.SaveMessage(ctx, &models.ChatHistory{RoomID: "r", SenderID: "b", Content: fmt.Sprint(i)}))
	}

	c, err := complaint.NewService(store).HandleComplaint(ctx, complaint.Report{RoomID: "r", ReporterID: "a", TargetID: "b"})
	require.NoError(t, err)

	require.Len(t, c.LoggedMessages, 50)
	assert.Equal(t, "reported: 10", c.LoggedMessages[0])
	assert.Equal(t, "Other", c.Reason)
}
