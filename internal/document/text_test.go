package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t,
		[]string{"ict", "risk", "article", "6", "2", "l", "été"},
		Tokens("ICT-risk; Article 6(2)  l'été"))
	assert.Empty(t, Tokens(" ,.; "))
}

func TestContentHash(t *testing.T) {
	a := ContentHash("Financial entities  shall\nreport.")
	b := ContentHash("financial entities shall report.")
	c := ContentHash("Financial entities shall not report.")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
