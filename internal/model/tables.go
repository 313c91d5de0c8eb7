package model

import "fmt"

const (
	UsersTable         = "ChatUsers"
	ConversationsTable = "Conversations"
	MessagesTable      = "Messages"
)

const (
	RoleCustomer = "customer"
	RoleWorkshop = "workshop"
)

// CounterpartRole returns the other side of a conversation for the given
// local role.
func CounterpartRole(role string) string {
	if role == RoleCustomer {
		return RoleWorkshop
	}
	return RoleCustomer
}

func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleWorkshop
}

type UserItem struct {
	UserID    string `dynamodbav:"userId"`
	Role      string `dynamodbav:"role"`
	Name      string `dynamodbav:"name"`
	AvatarURL string `dynamodbav:"avatarUrl,omitempty"`
	CreatedAt string `dynamodbav:"createdAt"`
}

func PairPK(customerID, workshopID string) string {
	return fmt.Sprintf("%s#%s", customerID, workshopID)
}
