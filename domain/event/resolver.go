package event

import (
	"github.com/samber/lo"

	"chat-notify/domain"
)

// Recipients derives the user ids entitled to see an event, purely from
// its payload. No store access happens here: the member snapshot was
// captured when the event was appended, which keeps resolution immune
// to concurrent membership changes.
//
// Rules:
//   - snapshot-carrying events go to the members captured in the payload;
//   - member_added goes to the new member set, so joiners see their own join;
//   - member_removed goes to the union of old and new sets, so leavers get
//     the removal notice and nothing after it;
//   - a membership event whose old and new sets are identical notifies no one.
func Recipients(e ChangeEvent) []domain.UserID {
	switch p := e.Payload.(type) {
	case ChatPayload:
		return p.Chat.Members
	case NamePayload:
		return p.Members
	case MessagePayload:
		return p.Members
	case MemberPayload:
		if sameMembers(p.PrevMembers, p.Chat.Members) {
			return nil
		}
		if e.Kind == MemberAdded {
			return p.Chat.Members
		}
		return lo.Union(p.PrevMembers, p.Chat.Members)
	default:
		return nil
	}
}

func sameMembers(old, new []domain.UserID) bool {
	if len(old) != len(new) {
		return false
	}
	return len(lo.Intersect(lo.Uniq(old), lo.Uniq(new))) == len(lo.Uniq(old))
}
