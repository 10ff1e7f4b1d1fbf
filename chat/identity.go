package chat

import "strings"

// idSeparator joins the two participant ids. Ids are Mongo ObjectID hex
// strings in production, so the separator can never occur inside one.
const idSeparator = "_"

// DeriveConversationID returns the canonical id of the conversation between
// two users. It is commutative: DeriveConversationID(a, b) equals
// DeriveConversationID(b, a) for all valid pairs.
func DeriveConversationID(a, b string) (string, error) {
	if err := validateParticipantID(a); err != nil {
		return "", err
	}
	if err := validateParticipantID(b); err != nil {
		return "", err
	}
	if a == b {
		return "", &IdentityError{ID: b}
	}
	if a > b {
		a, b = b, a
	}
	return a + idSeparator + b, nil
}

func validateParticipantID(id string) error {
	if id == "" || strings.Contains(id, idSeparator) {
		return &IdentityError{ID: id}
	}
	return nil
}
