package textfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Usuário", "usuario"},
		{"  Data Última   Associação ", "data ultima associacao"},
		{"CONCLUÍDO TASK", "concluido task"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), "Key(%q)", tt.in)
	}
}

func TestEqual_AccentAndCaseInsensitive(t *testing.T) {
	assert.True(t, Equal("Ajudante de Armazém", "ajudante de armazem"))
	assert.False(t, Equal("Operador", "Operadora"))
}
