package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Question string   `json:"question" validate:"required,max=10"`
	Rating   string   `json:"rating" validate:"omitempty,rating"`
	URLs     []string `json:"urls" validate:"dive,web_url"`
}

func TestStruct(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(sample{Question: "hi", Rating: " Positive ", URLs: []string{"https://www.example.edu/a"}}, LangEN))

	tests := []struct {
		name  string
		in    sample
		field string
		tag   string
	}{
		{"missing question", sample{}, "question", "required"},
		{"too long", sample{Question: "0123456789x"}, "question", "max"},
		{"bad rating", sample{Question: "q", Rating: "meh"}, "rating", "rating"},
		{"relative url", sample{Question: "q", URLs: []string{"/about"}}, "urls[0]", "web_url"},
		{"ftp url", sample{Question: "q", URLs: []string{"ftp://example.edu/x"}}, "urls[0]", "web_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in, LangEN)
			require.Error(t, err)
			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.First().Field)
			assert.Equal(t, tt.tag, verr.First().Tag)
			assert.NotEmpty(t, verr.First().Message)
		})
	}
}

func TestStruct_Translations(t *testing.T) {
	v := New()

	err := v.Struct(sample{Question: "q", Rating: "meh"}, LangEN)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rating must be positive or negative", verr.First().Message)

	err = v.Struct(sample{Question: "q", Rating: "meh"}, LangZH)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rating必须是 positive 或 negative", verr.First().Message)
}

func TestLangFromHeader(t *testing.T) {
	assert.Equal(t, LangZH, LangFromHeader("zh-CN,zh;q=0.9"))
	assert.Equal(t, LangEN, LangFromHeader("en-US"))
	assert.Equal(t, LangEN, LangFromHeader(""))
}
