package chat

import (
	"fmt"
	"math/rand"
)

// Picker selects an index in [0, n). Injectable so canned responses
// are deterministic under test.
type Picker func(n int) int

func defaultPicker(n int) int { return rand.Intn(n) }

var stickerTemplates = []string{
	"Nice sticker! %s I love the energy! What can I help you with today?",
	"%s That's a great way to start our conversation! How can I assist you?",
	"I see you're feeling %s! What would you like to explore together?",
	"%s Love it! Ready to dive into some interesting topics?",
}

func stickerReply(pick Picker, glyph string) string {
	return fmt.Sprintf(stickerTemplates[pick(len(stickerTemplates))], glyph)
}

const voiceReply = "I received your voice message! While I can't process audio directly yet, " +
	"if you could type your question, I'd be happy to help!"

func fileReply(name string) string {
	return fmt.Sprintf("I can see you've shared %q! While I can't directly analyze files yet, "+
		"I can help if you describe what you need assistance with.", name)
}
