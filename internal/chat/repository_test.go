package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beast-crm/internal/testhelpers"
)

func ptr(s string) *string { return &s }

func TestRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}
	repo := NewRepository(testhelpers.SetupPostgres(t).Conn)
	ctx := context.Background()

	t.Run("find or create by telefono", func(t *testing.T) {
		first, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Ana", Telefono: ptr("+34600000001")})
		require.NoError(t, err)
		again, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Ana G.", Telefono: ptr("+34600000001")})
		require.NoError(t, err)

		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "Ana", again.Contact.Nombre)
		assert.Nil(t, again.Contact.WhatsappJID)
	})

	t.Run("find by whatsapp jid", func(t *testing.T) {
		first, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Luis", WhatsappJID: ptr("34600000002@s.whatsapp.net")})
		require.NoError(t, err)
		again, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Luis", Telefono: ptr("+34600000099"), WhatsappJID: ptr("34600000002@s.whatsapp.net")})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("contacts without telefono stay apart", func(t *testing.T) {
		a, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Eva", WhatsappJID: ptr("jid-eva")})
		require.NoError(t, err)
		b, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Raúl", WhatsappJID: ptr("jid-raul")})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
		assert.Nil(t, b.Contact.Telefono)
	})

	t.Run("blank telefono from the service never matches", func(t *testing.T) {
		svc := NewService(repo, nil)
		a, err := svc.OpenChat(ctx, OpenChatRequest{Nombre: "Sin Tel 1", Telefono: ptr(""), WhatsappJID: ptr("jid-1")})
		require.NoError(t, err)
		b, err := svc.OpenChat(ctx, OpenChatRequest{Nombre: "Sin Tel 2", Telefono: ptr(""), WhatsappJID: ptr("jid-2")})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := repo.ChatContact(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrChatNotFound)
	})

	t.Run("messages newest first", func(t *testing.T) {
		chat, err := repo.FindOrCreateChat(ctx, OpenChatRequest{Nombre: "Marta", Telefono: ptr("+34600000003")})
		require.NoError(t, err)

		contact, err := repo.ChatContact(ctx, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, chat.Contact.ID, contact.ID)

		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		for i, remitente := range []*string{nil, ptr(uuid.NewString()), nil} {
			require.NoError(t, repo.SaveMessage(ctx, &Message{
				ID:          uuid.NewString(),
				ChatID:      chat.ID,
				Content:     string(rune('a' + i)),
				CreadoEn:    base.Add(time.Duration(i) * time.Minute),
				RemitenteID: remitente,
				ContactoID:  contact.ID,
			}))
		}

		msgs, err := repo.RecentMessages(ctx, chat.ID, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "c", msgs[0].Content)
		assert.Nil(t, msgs[0].RemitenteID)
		assert.Equal(t, "b", msgs[1].Content)
		assert.NotNil(t, msgs[1].RemitenteID)
		assert.WithinDuration(t, base.Add(2*time.Minute), msgs[0].CreadoEn, time.Millisecond)

		empty, err := repo.RecentMessages(ctx, uuid.NewString(), 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
