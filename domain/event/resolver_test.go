package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-notify/domain"
)

func chatWith(members ...domain.UserID) domain.Chat {
	return domain.Chat{ID: 1, Kind: domain.KindGroup, Name: "war-room", Members: members}
}

func TestRecipients_Lifecycle_Scenario(t *testing.T) {
	req := require.New(t)

	// Given a chat created with members {1,2}
	created := New(1, ChatCreated, ChatPayload{Chat: chatWith(1, 2)})
	req.ElementsMatch([]domain.UserID{1, 2}, Recipients(created))

	// When user 1 sends "hi"
	hi := New(1, MessageAdded, MessagePayload{
		Message: domain.Message{ChatID: 1, SenderID: 1, Content: "hi"},
		Members: []domain.UserID{1, 2},
	})
	// Then both members are notified
	req.ElementsMatch([]domain.UserID{1, 2}, Recipients(hi))

	// When user 3 is added
	added := New(1, MemberAdded, MemberPayload{
		Chat:        chatWith(1, 2, 3),
		PrevMembers: []domain.UserID{1, 2},
		Added:       []domain.UserID{3},
	})
	// Then the new member set sees the event, including the joiner
	req.ElementsMatch([]domain.UserID{1, 2, 3}, Recipients(added))

	// When user 2 is removed
	removed := New(1, MemberRemoved, MemberPayload{
		Chat:        chatWith(1, 3),
		PrevMembers: []domain.UserID{1, 2, 3},
		Removed:     []domain.UserID{2},
	})
	// Then the leaver still receives the removal notice
	req.ElementsMatch([]domain.UserID{1, 2, 3}, Recipients(removed))

	// When user 1 sends "bye" after the removal
	bye := New(1, MessageAdded, MessagePayload{
		Message: domain.Message{ChatID: 1, SenderID: 1, Content: "bye"},
		Members: []domain.UserID{1, 3},
	})
	// Then user 2 is excluded
	req.ElementsMatch([]domain.UserID{1, 3}, Recipients(bye))
	req.NotContains(Recipients(bye), domain.UserID(2))
}

func TestRecipients_RenameAndDelete_UseSnapshot(t *testing.T) {
	req := require.New(t)

	renamed := New(1, NameChanged, NamePayload{
		OldName: "war-room",
		NewName: "peace-room",
		Members: []domain.UserID{4, 5},
	})
	req.ElementsMatch([]domain.UserID{4, 5}, Recipients(renamed))

	deleted := New(1, ChatDeleted, ChatPayload{Chat: chatWith(4, 5)})
	req.ElementsMatch([]domain.UserID{4, 5}, Recipients(deleted))
}

func TestRecipients_UnchangedMembers_NotifiesNobody(t *testing.T) {
	req := require.New(t)

	// Given a membership event whose old and new sets are identical
	noop := New(1, MemberAdded, MemberPayload{
		Chat:        chatWith(1, 2),
		PrevMembers: []domain.UserID{2, 1},
	})

	// Then nobody is notified
	req.Empty(Recipients(noop))
}

func TestRecipients_EncodeDecode_PreservesRouting(t *testing.T) {
	req := require.New(t)

	evt := New(7, MemberRemoved, MemberPayload{
		Chat:        chatWith(1, 3),
		PrevMembers: []domain.UserID{1, 2, 3},
		Removed:     []domain.UserID{2},
	})
	evt.Seq = 42
	evt.GlobalSeq = 99

	raw, err := Encode(evt)
	req.NoError(err)

	decoded, err := Decode(raw)
	req.NoError(err)
	req.Equal(evt.ID, decoded.ID)
	req.Equal(uint64(42), decoded.Seq)
	req.Equal(uint64(99), decoded.GlobalSeq)
	req.ElementsMatch(Recipients(evt), Recipients(decoded))
}
