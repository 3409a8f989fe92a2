package services

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"chat-notify/domain"
	"chat-notify/errors"
	"chat-notify/repositories"
)

var validate = validator.New()

type CreateChatCommand struct {
	WorkspaceID domain.WorkspaceID
	Name        string
	Kind        domain.ChatKind `validate:"required,oneof=single group private_channel public_channel"`
	Members     []domain.UserID `validate:"required,min=1"`
}

type IChatService interface {
	CreateChat(ctx context.Context, cmd CreateChatCommand) (domain.Chat, error)
	RenameChat(ctx context.Context, chatID domain.ChatID, newName string) (domain.Chat, error)
	AddMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error)
	RemoveMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error)
	DeleteChat(ctx context.Context, chatID domain.ChatID) error
	SendMessage(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, content string, files []string) (domain.Message, error)
	GetMessages(chatID domain.ChatID, cursor *string) ([]domain.Message, *string, error)
}

// ChatService is the write surface of the chat store. Every mutation
// below commits its row change together with the change event that
// notifies the members, so observers never see one without the other.
type ChatService struct {
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	log      *slog.Logger
}

func NewChatService(chats repositories.IChatRepository, messages repositories.IMessageRepository,
	users repositories.IUserRepository, log *slog.Logger) *ChatService {
	return &ChatService{chats: chats, messages: messages, users: users, log: log}
}

func (s *ChatService) CreateChat(ctx context.Context, cmd CreateChatCommand) (domain.Chat, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Chat{}, err
	}
	if err := s.checkMembers(cmd.WorkspaceID, cmd.Members); err != nil {
		return domain.Chat{}, err
	}

	chat, err := s.chats.Create(ctx, domain.Chat{
		WorkspaceID: cmd.WorkspaceID,
		Name:        cmd.Name,
		Kind:        cmd.Kind,
		Members:     cmd.Members,
	})
	if err != nil {
		return domain.Chat{}, err
	}

	s.log.Info("Chat created", "chat", chat.ID, "kind", chat.Kind, "members", len(chat.Members))
	return chat, nil
}

func (s *ChatService) RenameChat(ctx context.Context, chatID domain.ChatID, newName string) (domain.Chat, error) {
	return s.chats.Rename(ctx, chatID, newName)
}

func (s *ChatService) AddMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error) {
	chat, err := s.chats.Get(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if err := s.checkMembers(chat.WorkspaceID, userIDs); err != nil {
		return domain.Chat{}, err
	}
	return s.chats.AddMembers(ctx, chatID, userIDs)
}

func (s *ChatService) RemoveMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error) {
	return s.chats.RemoveMembers(ctx, chatID, userIDs)
}

func (s *ChatService) DeleteChat(ctx context.Context, chatID domain.ChatID) error {
	return s.chats.Delete(ctx, chatID)
}

func (s *ChatService) SendMessage(ctx context.Context, chatID domain.ChatID,
	senderID domain.UserID, content string, files []string) (domain.Message, error) {
	return s.messages.Store(ctx, chatID, senderID, content, files)
}

func (s *ChatService) GetMessages(chatID domain.ChatID, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.GetMessages(chatID, cursor)
}

// checkMembers verifies each user exists and lives in the chat's
// workspace. Chats never span workspaces.
func (s *ChatService) checkMembers(ws domain.WorkspaceID, userIDs []domain.UserID) error {
	for _, id := range userIDs {
		user, err := s.users.GetUser(id)
		if err != nil {
			return err
		}
		if user.WorkspaceID != ws {
			return errors.ErrWorkspaceMismatch
		}
	}
	return nil
}
