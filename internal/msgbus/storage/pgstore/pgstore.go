// Package pgstore implements storage.Backend against a single Postgres
// table keyed by (bus_id, recipient_id, id), using the cursor dialect of
// next_unread: reads never delete, they just query id > last_read_id.
package pgstore

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/adred-codev/messagebus/internal/msgbus/storage"
)

const backendName = "pgstore"

// Schema is the DDL for the single table this backend requires. Callers
// run it once against their database; pgstore itself never issues DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS message_bus_inbox (
	bus_id       text    NOT NULL,
	recipient_id text    NOT NULL,
	id           bigint  NOT NULL,
	sender_id    text    NOT NULL,
	content      text    NOT NULL,
	priority     smallint NOT NULL,
	PRIMARY KEY (bus_id, recipient_id, id)
);
`

// Store is a storage.Backend backed by a pgxpool.Pool. Message ids are
// stored in a bigint column via bit-pattern reinterpretation
// (int64(id) / ID(uint64(v))): Postgres's bigint is a raw 64-bit
// two's-complement word, so round-tripping a uint64 through it loses
// nothing even once the priority bits set the sign bit.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// withTx runs fn inside a transaction, combining a callback error with a
// rollback failure via multierror and wrapping a commit failure —
// mirroring how the pack's pgx session type handles the same two
// failure paths.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "pgstore: unable to start transaction")
	}

	if err := fn(tx); err != nil {
		if txErr := tx.Rollback(ctx); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}

	if txErr := tx.Commit(ctx); txErr != nil {
		return errors.Wrap(txErr, "pgstore: failed to commit transaction")
	}
	return nil
}

func (s *Store) CreateInbox(context.Context, string, string) error {
	return nil
}

func (s *Store) RemoveInbox(ctx context.Context, busID, clientID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM message_bus_inbox WHERE bus_id = $1 AND recipient_id = $2`,
		busID, clientID)
	if err != nil {
		return storage.WrapErr(backendName, "remove_inbox", err)
	}
	return nil
}

func (s *Store) AddToInbox(ctx context.Context, busID, recipientID string, msg message.Message) error {
	content := msg.Content.String()
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO message_bus_inbox (bus_id, recipient_id, id, sender_id, content, priority)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (bus_id, recipient_id, id) DO NOTHING`,
			busID, recipientID, int64(msg.ID), msg.Sender, content, int16(msg.Priority))
		return err
	})
	if err != nil {
		return storage.WrapErr(backendName, "add_to_inbox", err)
	}
	return nil
}

func (s *Store) NextUnread(ctx context.Context, busID, recipientID string, lastReadID message.ID) (message.Message, bool, error) {
	// Ids with the top bit set (priority 4 and above) read back as
	// negative bigints. Flipping the sign bit on both sides makes the
	// signed comparison and ORDER BY follow unsigned id order.
	const signBit int64 = -1 << 63
	row := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, content, priority
		FROM message_bus_inbox
		WHERE bus_id = $1 AND recipient_id = $2 AND (id # $4) > $3
		ORDER BY id # $4
		LIMIT 1`,
		busID, recipientID, int64(lastReadID)^signBit, signBit)

	var (
		id       int64
		sender   string
		content  string
		priority int16
	)
	if err := row.Scan(&id, &sender, &content, &priority); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, false, nil
		}
		return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
	}

	var c message.Content
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
	}

	msg := message.New(message.ID(uint64(id)), sender, c, nil, message.Priority(priority))
	return msg, true, nil
}

func (s *Store) InboxDepth(ctx context.Context, busID, clientID string) (int, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM message_bus_inbox WHERE bus_id = $1 AND recipient_id = $2`,
		busID, clientID)

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, storage.WrapErr(backendName, "inbox_depth", err)
	}
	return n, nil
}

func (s *Store) RemoveReceived(ctx context.Context, busID, senderID string, recipientIDs []string, messageID message.ID) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM message_bus_inbox
			WHERE bus_id = $1 AND recipient_id = ANY($2) AND sender_id = $3 AND id = $4`,
			busID, recipientIDs, senderID, int64(messageID))
		return err
	})
	if err != nil {
		return storage.WrapErr(backendName, "remove_received", err)
	}
	return nil
}
