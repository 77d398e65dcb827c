package chat

import (
	"stationgate/internal/db"
)

// PersistentState is the stored status of a mailbox message.
type PersistentState uint32

const (
	StateNew      PersistentState = 1
	StateRead     PersistentState = 2
	StateArchived PersistentState = 3
)

// MessageHeader is the listing view of a mailbox message.
type MessageHeader struct {
	MessageID   uint32
	AvatarID    uint32
	FromName    string
	FromAddress string
	Subject     string
	SentTime    uint32
	Status      PersistentState
	Folder      string
	Category    string
}

// PersistentMessage is a full mailbox message including body and the
// out-of-band payload of 16-bit code units.
type PersistentMessage struct {
	Header  MessageHeader
	Message string
	OOB     []uint16
}

// PersistentMessageService implements offline-mailbox semantics over the
// persistent_message table.
type PersistentMessageService struct {
	conn db.Conn
}

func NewPersistentMessageService(conn db.Conn) *PersistentMessageService {
	return &PersistentMessageService{conn: conn}
}

// StoreMessage inserts the message and assigns its storage ID.
func (s *PersistentMessageService) StoreMessage(message *PersistentMessage) error {
	stmt, err := s.conn.Prepare(
		"INSERT INTO persistent_message (avatar_id, from_name, from_address, subject, sent_time, status, " +
			"folder, category, message, oob) VALUES (@avatar_id, @from_name, @from_address, " +
			"@subject, @sent_time, @status, @folder, @category, @message, @oob)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(message.Header.AvatarID))
	binder.Text("@from_name", message.Header.FromName)
	binder.Text("@from_address", message.Header.FromAddress)
	binder.Text("@subject", message.Header.Subject)
	binder.Int("@sent_time", int64(message.Header.SentTime))
	binder.Int("@status", int64(message.Header.Status))
	binder.Text("@folder", message.Header.Folder)
	binder.Text("@category", message.Header.Category)
	binder.Text("@message", message.Message)
	binder.Blob("@oob", encodeOOB(message.OOB))
	if err := binder.Err(); err != nil {
		return err
	}

	if err := db.ExpectDone(stmt, "insert persistent message"); err != nil {
		return err
	}

	message.Header.MessageID = s.conn.LastInsertID()
	return nil
}

// GetMessageHeaders lists messages in any non-terminal status.
func (s *PersistentMessageService) GetMessageHeaders(avatarID uint32) ([]MessageHeader, error) {
	stmt, err := s.conn.Prepare(
		"SELECT id, avatar_id, from_name, from_address, subject, sent_time, status, " +
			"folder, category, message, oob FROM persistent_message WHERE avatar_id = " +
			"@avatar_id AND status IN (1, 2, 3)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(avatarID))
	if err := binder.Err(); err != nil {
		return nil, err
	}

	var headers []MessageHeader
	for {
		result, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if result != db.StepRow {
			break
		}

		headers = append(headers, MessageHeader{
			MessageID:   uint32(stmt.ColumnInt(0)),
			AvatarID:    uint32(stmt.ColumnInt(1)),
			FromName:    stmt.ColumnText(2),
			FromAddress: stmt.ColumnText(3),
			Subject:     stmt.ColumnText(4),
			SentTime:    uint32(stmt.ColumnInt(5)),
			Status:      PersistentState(stmt.ColumnInt(6)),
			Folder:      stmt.ColumnText(7),
			Category:    stmt.ColumnText(8),
		})
	}

	return headers, nil
}

// GetMessage fetches one message scoped by owner. Fetching a NEW message
// transitions it to READ as an observable side effect; fetching it again does
// not re-trigger the transition.
func (s *PersistentMessageService) GetMessage(avatarID, messageID uint32) (*PersistentMessage, error) {
	stmt, err := s.conn.Prepare(
		"SELECT id, avatar_id, from_name, from_address, subject, sent_time, status, " +
			"folder, category, message, oob FROM persistent_message WHERE id = @message_id " +
			"AND avatar_id = @avatar_id")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@message_id", int64(messageID))
	binder.Int("@avatar_id", int64(avatarID))
	if err := binder.Err(); err != nil {
		return nil, err
	}

	result, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if result != db.StepRow {
		return nil, NewResult(ResultMessageNotFound, "no message matches the given id and owner")
	}

	message := &PersistentMessage{
		Header: MessageHeader{
			MessageID:   messageID,
			AvatarID:    avatarID,
			FromName:    stmt.ColumnText(2),
			FromAddress: stmt.ColumnText(3),
			Subject:     stmt.ColumnText(4),
			SentTime:    uint32(stmt.ColumnInt(5)),
			Status:      PersistentState(stmt.ColumnInt(6)),
			Folder:      stmt.ColumnText(7),
			Category:    stmt.ColumnText(8),
		},
		Message: stmt.ColumnText(9),
	}

	oob, err := decodeOOB(stmt.ColumnBlob(10))
	if err != nil {
		return nil, err
	}
	message.OOB = oob

	if message.Header.Status == StateNew {
		if err := s.UpdateMessageStatus(avatarID, messageID, StateRead); err != nil {
			return nil, err
		}
	}

	return message, nil
}

func (s *PersistentMessageService) UpdateMessageStatus(avatarID, messageID uint32, status PersistentState) error {
	stmt, err := s.conn.Prepare(
		"UPDATE persistent_message SET status = @status WHERE id = @message_id AND avatar_id = @avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@status", int64(status))
	binder.Int("@message_id", int64(messageID))
	binder.Int("@avatar_id", int64(avatarID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "update message status")
}

// BulkUpdateMessageStatus mutates every message the avatar owns in the given
// category.
func (s *PersistentMessageService) BulkUpdateMessageStatus(avatarID uint32, category string, status PersistentState) error {
	stmt, err := s.conn.Prepare(
		"UPDATE persistent_message SET status = @status WHERE avatar_id = @avatar_id AND category = @category")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@status", int64(status))
	binder.Int("@avatar_id", int64(avatarID))
	binder.Text("@category", category)
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "bulk update message status")
}
