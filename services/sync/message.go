package sync

import (
	"bytes"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	go_imap "github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/lib/pq"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/utils"
)

const previewLength = 200

// attachmentData pairs an attachment record with its decoded content
// until both are persisted.
type attachmentData struct {
	record  *models.EmailAttachment
	content []byte
}

// mapMessage converts a fetched message into the local mirror model.
// The email ID is assigned here so attachment records can reference it
// before the row is inserted.
func mapMessage(account *models.MailAccount, folder enum.FolderType, msg *interfaces.MailMessage) (*models.Email, []attachmentData) {
	email := &models.Email{
		ID:         utils.GenerateNanoIDWithPrefix("email", 24),
		AccountID:  account.ID,
		Provider:   account.Provider,
		FolderType: folder,
		ImapUID:    msg.UID,
	}

	processEnvelope(email, msg.Envelope)
	processFlags(email, msg.Flags)
	attachments := processMessageContent(email, msg.Raw)

	if email.Preview == "" && email.BodyText != "" {
		email.Preview = makePreview(email.BodyText)
	}

	return email, attachments
}

func processEnvelope(email *models.Email, envelope *go_imap.Envelope) {
	if envelope == nil {
		return
	}

	if !envelope.Date.IsZero() {
		sentTime := envelope.Date
		email.SentAt = &sentTime
	}

	email.Subject = envelope.Subject
	email.MessageID = utils.NormalizeMessageID(envelope.MessageId)

	processInReplyTo(email, envelope)

	if len(envelope.From) > 0 {
		sender := envelope.From[0]
		email.FromName = sender.PersonalName
		syntaxValidation := mailvalidate.ValidateEmailSyntax(sender.Address())
		if syntaxValidation.IsValid {
			email.FromAddress = syntaxValidation.CleanEmail
		}
	}

	email.ToAddresses = convertAddressesToStringArray(envelope.To)
	email.CcAddresses = convertAddressesToStringArray(envelope.Cc)
	email.BccAddresses = convertAddressesToStringArray(envelope.Bcc)
}

func processInReplyTo(email *models.Email, envelope *go_imap.Envelope) {
	if envelope.InReplyTo == "" {
		return
	}

	var allReferences []string
	for _, ref := range strings.Split(envelope.InReplyTo, " ") {
		ref = utils.NormalizeMessageID(ref)
		if ref != "" && !utils.IsStringInSlice(ref, allReferences) {
			allReferences = append(allReferences, ref)
		}
	}

	if len(allReferences) > 0 {
		email.InReplyTo = allReferences[0]
	}
	email.References = allReferences
}

func processFlags(email *models.Email, flags []string) {
	for _, flag := range flags {
		switch flag {
		case go_imap.SeenFlag:
			email.IsRead = true
		case go_imap.FlaggedFlag:
			email.IsStarred = true
		}
	}
}

func convertAddressesToStringArray(addresses []*go_imap.Address) pq.StringArray {
	if len(addresses) == 0 {
		return pq.StringArray{}
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr.MailboxName != "" && addr.HostName != "" {
			validation := mailvalidate.ValidateEmailSyntax(addr.Address())
			if validation.IsValid {
				result = append(result, validation.CleanEmail)
			}
		}
	}

	return pq.StringArray(result)
}

func processMessageContent(email *models.Email, raw []byte) []attachmentData {
	if len(raw) == 0 {
		return nil
	}

	parser, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	headers := make(map[string]interface{})
	for _, key := range parser.GetHeaderKeys() {
		values := parser.GetHeaderValues(key)
		if len(values) > 0 {
			headers[key] = values
		}
	}
	processReferences(email, parser)
	email.RawHeaders = models.JSONMap(headers)

	email.BodyText = parser.Text
	email.BodyHTML = parser.HTML

	var attachments []attachmentData
	for _, attachment := range parser.Attachments {
		attachments = append(attachments, attachmentData{
			record: &models.EmailAttachment{
				EmailID:     email.ID,
				Filename:    attachment.FileName,
				ContentType: attachment.ContentType,
				Size:        len(attachment.Content),
			},
			content: attachment.Content,
		})
	}
	for _, inline := range parser.Inlines {
		attachments = append(attachments, attachmentData{
			record: &models.EmailAttachment{
				EmailID:     email.ID,
				Filename:    inline.FileName,
				ContentType: inline.ContentType,
				ContentID:   inline.ContentID,
				Size:        len(inline.Content),
			},
			content: inline.Content,
		})
	}

	if len(attachments) > 0 {
		email.HasAttachment = true
	}
	return attachments
}

// processReferences merges the References header into the reference
// chain started from In-Reply-To.
func processReferences(email *models.Email, parser *enmime.Envelope) {
	refsHeader := parser.GetHeader("References")
	if refsHeader == "" {
		return
	}

	refs := []string(email.References)
	for _, ref := range strings.Fields(refsHeader) {
		ref = utils.NormalizeMessageID(ref)
		if ref != "" && !utils.IsStringInSlice(ref, refs) {
			refs = append(refs, ref)
		}
	}
	email.References = pq.StringArray(refs)
}

func makePreview(text string) string {
	preview := strings.Join(strings.Fields(text), " ")
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	return preview
}
