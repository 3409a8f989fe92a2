package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"chat-notify/domain/event"
)

// Offline inspection of a chat-notify store: dumps the change log as a
// table, in commit order or for one chat. The store must not be served
// by a running engine at the same time unless opened read-only works.
func main() {
	dbPath := flag.String("db", "/tmp/badger", "Path to badger DB")
	chatID := flag.Int64("chat", 0, "Dump one chat's log instead of the global tail")
	noColor := flag.Bool("no-color", false, "Disable colored event kinds")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	prefix := "log:"
	if *chatID > 0 {
		prefix = fmt.Sprintf("evt:%012d:", *chatID)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Global", "Chat", "Seq", "Kind", "At", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				e, err := event.Decode(v)
				if err != nil {
					// Log and keep scanning instead of aborting the dump
					fmt.Printf("Error decoding key %s: %v\n", string(it.Item().Key()), err)
					return nil
				}

				kind := string(e.Kind)
				if !*noColor {
					kind = colorKind(e.Kind)
				}

				table.Append([]string{
					fmt.Sprintf("%d", e.GlobalSeq),
					fmt.Sprintf("%d", e.ChatID),
					fmt.Sprintf("%d", e.Seq),
					kind,
					e.OccurredAt.Format("15:04:05"),
					detail(e),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func colorKind(kind event.Kind) string {
	switch kind {
	case event.MessageAdded:
		return color.New(color.FgGreen).Render(string(kind))
	case event.MemberAdded, event.MemberRemoved:
		return color.New(color.FgYellow).Render(string(kind))
	case event.ChatDeleted:
		return color.New(color.FgRed).Render(string(kind))
	default:
		return color.New(color.FgCyan).Render(string(kind))
	}
}

func detail(e event.ChangeEvent) string {
	switch p := e.Payload.(type) {
	case event.ChatPayload:
		return fmt.Sprintf("%s %q members=%v", p.Chat.Kind, p.Chat.Name, p.Chat.Members)
	case event.MemberPayload:
		return fmt.Sprintf("prev=%v added=%v removed=%v", p.PrevMembers, p.Added, p.Removed)
	case event.NamePayload:
		return fmt.Sprintf("%q -> %q", p.OldName, p.NewName)
	case event.MessagePayload:
		content := p.Message.Content
		if len(content) > 40 {
			content = content[:40] + "..."
		}
		return fmt.Sprintf("from=%d %q", p.Message.SenderID, content)
	default:
		return ""
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
