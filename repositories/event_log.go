package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
)

// Key layout in BadgerDB. Zero padding keeps lexicographic order equal
// to numeric order, so prefix scans return events already sorted.
//
//	evt:{chat:%012d}:{seq:%012d}  -> event record (per-chat ordered read)
//	log:{globalSeq:%020d}         -> same record (commit-ordered tail)
//	seq:chat:{chat:%012d}         -> last assigned per-chat seq
//	seq:log                       -> last assigned global seq
//	horizon:{chat:%012d}          -> first seq still retained after compaction
const (
	evtKeyFmt     = "evt:%012d:%012d"
	evtPrefixFmt  = "evt:%012d:"
	logKeyFmt     = "log:%020d"
	logPrefix     = "log:"
	chatSeqKeyFmt = "seq:chat:%012d"
	chatSeqPrefix = "seq:chat:"
	globalSeqKey  = "seq:log"
	horizonKeyFmt = "horizon:%012d"
)

const (
	appendRetries = 5
	retryBaseWait = 10 * time.Millisecond
)

// EventLog is the durable, append-only change log. Appends happen inside
// the same Badger transaction as the row mutation that caused them, so
// either both commit or neither does.
type EventLog struct {
	db   *badger.DB
	log  *slog.Logger
	wake chan struct{}
}

func NewEventLog(db *badger.DB, log *slog.Logger) *EventLog {
	return &EventLog{db: db, log: log, wake: make(chan struct{}, 1)}
}

// WakeCh signals the log tail after every successful append.
// Capacity one: a missed signal is fine, the tailer also polls.
func (l *EventLog) WakeCh() <-chan struct{} { return l.wake }

// Update runs mutate inside one transaction and appends every drafted
// event it returns in that same transaction. Sequence numbers are
// assigned here, under the transaction, which serializes writers per
// chat: two concurrent appends to one chat conflict and one retries.
//
// Conflicts are retried with backoff; a commit failure after the
// retries surfaces as a durability failure and nothing is applied.
func (l *EventLog) Update(ctx context.Context,
	mutate func(txn *badger.Txn) ([]event.ChangeEvent, error)) ([]event.ChangeEvent, error) {

	var sequenced []event.ChangeEvent

	for attempt := 1; ; attempt++ {
		sequenced = nil
		err := l.db.Update(func(txn *badger.Txn) error {
			drafts, err := mutate(txn)
			if err != nil {
				return err
			}
			for _, draft := range drafts {
				e, err := l.appendTx(txn, draft)
				if err != nil {
					return err
				}
				sequenced = append(sequenced, e)
			}
			return nil
		})

		if err == nil {
			break
		}
		if !stderrors.Is(err, badger.ErrConflict) {
			return nil, err
		}
		if attempt == appendRetries {
			return nil, &errors.TransientError{Err: err}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseWait):
		}
	}

	if len(sequenced) > 0 {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
	return sequenced, nil
}

// appendTx assigns the per-chat and global sequence numbers and writes
// the record under both key spaces.
func (l *EventLog) appendTx(txn *badger.Txn, draft event.ChangeEvent) (event.ChangeEvent, error) {
	seq, err := nextCounter(txn, []byte(fmt.Sprintf(chatSeqKeyFmt, draft.ChatID)))
	if err != nil {
		return event.ChangeEvent{}, &errors.DurabilityError{Op: "chat seq", Err: err}
	}
	globalSeq, err := nextCounter(txn, []byte(globalSeqKey))
	if err != nil {
		return event.ChangeEvent{}, &errors.DurabilityError{Op: "global seq", Err: err}
	}

	draft.Seq = seq
	draft.GlobalSeq = globalSeq

	raw, err := event.Encode(draft)
	if err != nil {
		return event.ChangeEvent{}, &errors.DurabilityError{Op: "encode", Err: err}
	}

	evtKey := []byte(fmt.Sprintf(evtKeyFmt, draft.ChatID, draft.Seq))
	if err := txn.Set(evtKey, raw); err != nil {
		return event.ChangeEvent{}, &errors.DurabilityError{Op: "append", Err: err}
	}
	logKey := []byte(fmt.Sprintf(logKeyFmt, draft.GlobalSeq))
	if err := txn.Set(logKey, raw); err != nil {
		return event.ChangeEvent{}, &errors.DurabilityError{Op: "append", Err: err}
	}
	return draft, nil
}

// ReadFrom returns up to limit events of one chat with seq > afterSeq,
// in ascending seq order. A position older than the retained history
// yields ErrCatchupHorizonExceeded.
func (l *EventLog) ReadFrom(chatID domain.ChatID, afterSeq uint64, limit int) ([]event.ChangeEvent, error) {
	var events []event.ChangeEvent
	err := l.db.View(func(txn *badger.Txn) error {
		horizon, err := readHorizon(txn, chatID)
		if err != nil {
			return err
		}
		if afterSeq+1 < horizon {
			return errors.ErrCatchupHorizonExceeded
		}

		prefix := []byte(fmt.Sprintf(evtPrefixFmt, chatID))
		seekKey := []byte(fmt.Sprintf(evtKeyFmt, chatID, afterSeq+1))

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(events) == limit {
				break
			}
			if err := collect(it.Item(), &events); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ReadLog returns up to limit events with globalSeq > afterGlobalSeq in
// commit order, across all chats. This is the dispatcher's tail.
func (l *EventLog) ReadLog(afterGlobalSeq uint64, limit int) ([]event.ChangeEvent, error) {
	var events []event.ChangeEvent
	err := l.db.View(func(txn *badger.Txn) error {
		prefix := []byte(logPrefix)
		seekKey := []byte(fmt.Sprintf(logKeyFmt, afterGlobalSeq+1))

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(events) == limit {
				break
			}
			if err := collect(it.Item(), &events); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Head returns the last committed global sequence number.
func (l *EventLog) Head() (uint64, error) {
	var head uint64
	err := l.db.View(func(txn *badger.Txn) error {
		v, err := readCounter(txn, []byte(globalSeqKey))
		head = v
		return err
	})
	return head, err
}

// Horizon returns the first retained seq for a chat (1 when the chat
// was never compacted).
func (l *EventLog) Horizon(chatID domain.ChatID) (uint64, error) {
	var horizon uint64
	err := l.db.View(func(txn *badger.Txn) error {
		v, err := readHorizon(txn, chatID)
		horizon = v
		return err
	})
	return horizon, err
}

// Chats lists every chat id the log has appended for, via the seq
// counter keys. Used by the retention worker.
func (l *EventLog) Chats() ([]domain.ChatID, error) {
	var ids []domain.ChatID
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chatSeqPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := string(it.Item().Key()[len(prefix):])
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			ids = append(ids, domain.ChatID(id))
		}
		return nil
	})
	return ids, err
}

// CompactBefore removes a chat's events older than cutoff and raises
// the catch-up horizon past them. Both the per-chat and the global key
// of each removed event are deleted.
func (l *EventLog) CompactBefore(chatID domain.ChatID, cutoff time.Time) (int, error) {
	type victim struct {
		seq       uint64
		globalSeq uint64
	}
	var victims []victim

	err := l.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf(evtPrefixFmt, chatID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e event.ChangeEvent
			err := it.Item().Value(func(v []byte) error {
				var err error
				e, err = event.Decode(v)
				return err
			})
			if err != nil {
				return err
			}
			if !e.OccurredAt.Before(cutoff) {
				// Keys are seq ordered and events time ordered per chat:
				// once one is recent enough, the rest are too.
				break
			}
			victims = append(victims, victim{seq: e.Seq, globalSeq: e.GlobalSeq})
		}
		return nil
	})
	if err != nil || len(victims) == 0 {
		return 0, err
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		for _, v := range victims {
			if err := txn.Delete([]byte(fmt.Sprintf(evtKeyFmt, chatID, v.seq))); err != nil {
				return err
			}
			if err := txn.Delete([]byte(fmt.Sprintf(logKeyFmt, v.globalSeq))); err != nil {
				return err
			}
		}
		horizon := victims[len(victims)-1].seq + 1
		key := []byte(fmt.Sprintf(horizonKeyFmt, chatID))
		return txn.Set(key, []byte(strconv.FormatUint(horizon, 10)))
	})
	if err != nil {
		return 0, err
	}

	l.log.Debug("Compacted chat history",
		"chat", chatID, "removed", len(victims), "cutoff", cutoff)
	return len(victims), nil
}

func collect(item *badger.Item, events *[]event.ChangeEvent) error {
	return item.Value(func(v []byte) error {
		e, err := event.Decode(v)
		if err != nil {
			return err
		}
		*events = append(*events, e)
		return nil
	})
}

func readHorizon(txn *badger.Txn, chatID domain.ChatID) (uint64, error) {
	v, err := readCounter(txn, []byte(fmt.Sprintf(horizonKeyFmt, chatID)))
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 1, nil
	}
	return v, nil
}

func nextCounter(txn *badger.Txn, key []byte) (uint64, error) {
	cur, err := readCounter(txn, key)
	if err != nil {
		return 0, err
	}
	cur++
	if err := txn.Set(key, []byte(strconv.FormatUint(cur, 10))); err != nil {
		return 0, err
	}
	return cur, nil
}

func readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var cur uint64
	err = item.Value(func(v []byte) error {
		parsed, err := strconv.ParseUint(string(v), 10, 64)
		cur = parsed
		return err
	})
	return cur, err
}
