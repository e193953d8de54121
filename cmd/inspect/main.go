// Command inspect prints the content of a direct-chat badger store as a table.
// It opens the database read-only and can run next to a stopped server.
package main

import (
	"direct-chat/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"go.mongodb.org/mongo-driver/bson"
)

const timeLayout = "2006-01-02 15:04:05.000"

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "conv:", "Prefix to scan (conv:, msg:<conversation>:, user:, member:)")
	limit := flag.Int("limit", 200, "Maximum number of rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rows, err := scan(db, *prefix, *limit)
	if err != nil {
		log.Fatal(err)
	}
	render(os.Stdout, rows)
	color.Info.Printf("%d row(s) under %q\n", len(rows), *prefix)
}

type row struct {
	Key    string
	Kind   string
	ID     string
	When   string
	Detail string
}

func scan(db *badger.DB, prefix string, limit int) ([]row, error) {
	var rows []row
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && len(rows) < limit; it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				r, err := decode(key, v)
				if err != nil {
					color.Warn.Printf("Skipping %s: %v\n", key, err)
					return nil
				}
				rows = append(rows, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// decode turns one value into a row according to its key family.
func decode(key string, v []byte) (row, error) {
	switch {
	case strings.HasPrefix(key, "conv:"):
		var c repositories.DiskConversation
		if err := bson.Unmarshal(v, &c); err != nil {
			return row{}, err
		}
		detail := fmt.Sprintf("%s, %d message(s)", strings.Join(c.Participants, " <-> "), c.MessageCount)
		if c.LastMessage != nil {
			detail += fmt.Sprintf(", last: %q", shorten(c.LastMessage.Message, 40))
		}
		return row{Key: key, Kind: "CONVERSATION", ID: c.ID, When: c.LastActivity.UTC().Format(timeLayout), Detail: detail}, nil
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := bson.Unmarshal(v, &m); err != nil {
			return row{}, err
		}
		read := "unread"
		if m.IsRead {
			read = "read"
		}
		detail := fmt.Sprintf("%s (%s): %q", m.Sender, read, shorten(m.Message, 60))
		return row{Key: key, Kind: "MESSAGE", ID: m.ID, When: m.Timestamp.UTC().Format(timeLayout), Detail: detail}, nil
	case strings.HasPrefix(key, "user:"):
		var u repositories.DiskUser
		if err := bson.Unmarshal(v, &u); err != nil {
			return row{}, err
		}
		return row{Key: key, Kind: "USER", ID: u.ID, When: u.CreatedAt.UTC().Format(timeLayout), Detail: u.Username + " <" + u.Email + ">"}, nil
	default:
		return row{Key: key, Kind: "INDEX", Detail: string(v)}, nil
	}
}

func render(w io.Writer, rows []row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Type", "ID", "Timestamp", "Detail"})
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
	for _, r := range rows {
		table.Append([]string{r.Key, r.Kind, r.ID, r.When, r.Detail})
	}
	table.Render()
}

func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
