package thread

// MemberState is a member's derived status for a single turn.
type MemberState string

const (
	StatePending     MemberState = "pending"
	StateRunning     MemberState = "running"
	StateResponded   MemberState = "responded"
	StateErrored     MemberState = "errored"
	StateTimedOut    MemberState = "timed_out"
	StateInterrupted MemberState = "interrupted"
)

// KingSender is the fixed sender name for human-authored messages
// (spec.md §3: "the first message's sender is the human").
const KingSender = "king"

// LastHumanMessage returns the last message sent by the king in
// messages (assumed sorted by sequence number), and true if one exists.
func LastHumanMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].From == KingSender {
			return messages[i], true
		}
	}
	return Message{}, false
}

// CurrentTurn returns the messages belonging to the latest turn: the
// span from the last human message (inclusive) to the end of the
// thread (spec.md §4.7: "a turn is the span of messages from one human
// message up to, but not including, the next").
func CurrentTurn(messages []Message) []Message {
	human, ok := LastHumanMessage(messages)
	if !ok {
		return messages
	}
	var turn []Message
	for _, m := range messages {
		if m.Seq >= human.Seq {
			turn = append(turn, m)
		}
	}
	return turn
}

// LiveCheck reports whether a member with no reply yet in the current
// turn should be considered still running (a live pid, or a growing
// stream file) versus merely pending. Supplying this as a caller-owned
// predicate keeps DeriveStatus a pure function over messages alone.
type LiveCheck func(member string) bool

// DeriveStatus computes each declared member's status purely from the
// thread's message list, per spec.md §4.10:
//  1. find the last human message; expected responders come from its
//     `to` header (declaredMembers resolves the "all" sentinel).
//  2. for each expected responder, scan messages strictly after the
//     human message, in sequence order.
//  3. the first matching reply's body prefix determines errored /
//     interrupted / timed_out / responded.
//  4. no reply and live() reports true ⇒ running; otherwise pending.
func DeriveStatus(messages []Message, declaredMembers []string, live LiveCheck) map[string]MemberState {
	result := make(map[string]MemberState)
	human, ok := LastHumanMessage(messages)
	if !ok {
		for _, member := range declaredMembers {
			result[member] = StatePending
		}
		return result
	}

	expected := human.ToNames(declaredMembers)
	for _, member := range expected {
		state := StatePending
		found := false
		for _, m := range messages {
			if m.Seq <= human.Seq || m.From != member {
				continue
			}
			found = true
			switch {
			case IsErrorBody(m.Body):
				state = StateErrored
			case IsInterruptedBody(m.Body):
				state = StateInterrupted
			case IsTimeoutBody(m.Body):
				state = StateTimedOut
			default:
				state = StateResponded
			}
			break
		}
		if !found {
			if live != nil && live(member) {
				state = StateRunning
			} else {
				state = StatePending
			}
		}
		result[member] = state
	}
	return result
}

// RespondedMembers returns, for a given turn's messages, the set of
// senders with at least one non-failure reply after humanSeq — used by
// the retry engine to compute the complement (the missing/errored set).
func RespondedMembers(turn []Message, humanSeq int) map[string]bool {
	responded := make(map[string]bool)
	for _, m := range turn {
		if m.Seq <= humanSeq {
			continue
		}
		if IsFailureBody(m.Body) {
			continue
		}
		responded[m.From] = true
	}
	return responded
}
