package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		email, password string
		wantErr         bool
	}{
		{"jane.doe@gmail.com", "secret1", false},
		{"jane_doe-2@gmail.com", "123456", false},
		{"jane@yahoo.com", "secret1", true},
		{"jane@gmail.com.evil", "secret1", true},
		{"@gmail.com", "secret1", true},
		{"jane@gmail.com", "12345", true},
	}
	for _, tt := range tests {
		err := ValidateRegistration(tt.email, tt.password)
		if tt.wantErr {
			assert.Error(t, err, tt.email)
		} else {
			assert.NoError(t, err, tt.email)
		}
	}
}

func TestValidateFeedback(t *testing.T) {
	ok := Feedback{Name: "Ana", Country: "PT", Message: "great", Rating: 5}
	assert.NoError(t, ValidateFeedback(ok))

	for _, rating := range []int{0, 6, -1} {
		f := ok
		f.Rating = rating
		assert.EqualError(t, ValidateFeedback(f), "rating must be 1-5")
	}

	long := ok
	long.Message = strings.Repeat("x", MaxFeedbackMsgLen+1)
	assert.Error(t, ValidateFeedback(long))
}

func TestParseContentKind(t *testing.T) {
	for _, k := range ContentKinds {
		got, err := ParseContentKind(string(k))
		assert.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseContentKind("recipes")
	assert.Error(t, err)
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent(Content{Title: "Box breathing", Body: "4-4-4-4"}))
	assert.Error(t, ValidateContent(Content{Title: "", Body: "x"}))
	assert.Error(t, ValidateContent(Content{Title: strings.Repeat("t", MaxContentTitleLen+1), Body: "x"}))
}
