package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DatabaseName(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017":                     DefaultDatabase,
		"mongodb://localhost:27017/":                    DefaultDatabase,
		"mongodb://localhost:27017/dm":                  "dm",
		"mongodb://u:p@h1,h2/dm_prod?replicaSet=rs0":    "dm_prod",
		"mongodb+srv://cluster.example.com/?retryWrites": DefaultDatabase,
	}
	for uri, want := range cases {
		assert.Equal(t, want, DatabaseName(uri), uri)
	}
}
