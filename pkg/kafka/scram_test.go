package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xdg-go/scram"
)

func TestXDGSCRAMClientConversation(t *testing.T) {
	for name, hash := range map[string]scram.HashGeneratorFcn{"sha256": SHA256, "sha512": SHA512} {
		t.Run(name, func(t *testing.T) {
			reference, err := hash.NewClient("alice", "secret", "")
			require.NoError(t, err)
			creds := reference.GetStoredCredentials(scram.KeyFactors{Salt: "pepper", Iters: 4096})

			server, err := hash.NewServer(func(user string) (scram.StoredCredentials, error) {
				assert.Equal(t, "alice", user)
				return creds, nil
			})
			require.NoError(t, err)
			serverConv := server.NewConversation()

			client := &XDGSCRAMClient{HashGeneratorFcn: hash}
			require.NoError(t, client.Begin("alice", "secret", ""))

			msg, err := client.Step("")
			require.NoError(t, err)
			for !client.Done() {
				challenge, err := serverConv.Step(msg)
				require.NoError(t, err)
				msg, err = client.Step(challenge)
				require.NoError(t, err)
			}
			assert.True(t, serverConv.Valid())
		})
	}
}

func TestXDGSCRAMClientWrongPassword(t *testing.T) {
	reference, err := SHA256.NewClient("alice", "secret", "")
	require.NoError(t, err)
	creds := reference.GetStoredCredentials(scram.KeyFactors{Salt: "pepper", Iters: 4096})

	server, err := SHA256.NewServer(func(string) (scram.StoredCredentials, error) { return creds, nil })
	require.NoError(t, err)
	serverConv := server.NewConversation()

	client := &XDGSCRAMClient{HashGeneratorFcn: SHA256}
	require.NoError(t, client.Begin("alice", "wrong", ""))

	first, err := client.Step("")
	require.NoError(t, err)
	challenge, err := serverConv.Step(first)
	require.NoError(t, err)
	final, err := client.Step(challenge)
	require.NoError(t, err)

	_, err = serverConv.Step(final)
	assert.Error(t, err)
	assert.False(t, serverConv.Valid())
}
