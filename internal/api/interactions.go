package api

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

var emojis = []string{"😄", "😌", "🤓", "😎", "🤖", "👋", "🌊", "✨", "🔥", "🚀"}

func randomEmoji() string {
	return emojis[rand.Intn(len(emojis))]
}

// handleInteractions answers Discord's interaction callbacks: the
// handshake ping and slash commands. Requests carry an ed25519 signature
// over timestamp+body; anything unverified is rejected before parsing.
func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	if !discordgo.VerifyInteraction(r, s.cfg.PublicKey) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid request signature"})
		return
	}

	var interaction discordgo.Interaction
	if err := json.NewDecoder(r.Body).Decode(&interaction); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	switch interaction.Type {
	case discordgo.InteractionPing:
		s.logger.Debug("interaction ping")
		writeJSON(w, http.StatusOK, discordgo.InteractionResponse{
			Type: discordgo.InteractionResponsePong,
		})

	case discordgo.InteractionApplicationCommand:
		data := interaction.ApplicationCommandData()
		if data.Name != "test" {
			s.logger.Warn("unknown command", "name", data.Name)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown command"})
			return
		}
		s.logger.Info("test command invoked")
		writeJSON(w, http.StatusOK, discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "hello world " + randomEmoji(),
			},
		})

	default:
		s.logger.Warn("unknown interaction type", "type", int(interaction.Type))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown interaction type"})
	}
}
