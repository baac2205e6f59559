package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	c, ok := Parse("/groupname on  Book   Club", "/")
	assert.True(ok)
	assert.Equal(VerbGroupName, c.Verb)
	assert.Equal("on", c.Action())
	assert.Equal("Book Club", c.Rest(1))

	// marker is optional, verb is case-folded
	c, ok = Parse("NickName ON u1 Big Bird", "/")
	assert.True(ok)
	assert.Equal(VerbNickname, c.Verb)
	assert.Equal("on", c.Action())
	assert.Equal("u1", c.Arg(1))
	assert.Equal("Big Bird", c.Rest(2))

	c, ok = Parse("!emoji 🔥", "!")
	assert.True(ok)
	assert.Equal(VerbEmoji, c.Verb)
	assert.Equal("🔥", c.Arg(0))

	c, ok = Parse("/help", "/")
	assert.True(ok)
	assert.Equal(VerbHelp, c.Verb)
	assert.Empty(c.Args)
	assert.Equal("", c.Arg(0))
	assert.Equal("", c.Rest(3))

	for _, text := range []string{"", "   ", "/", "/groupnames on x", "hello there", "//help"} {
		_, ok := Parse(text, "/")
		assert.False(ok, text)
	}
}

func TestVerbs(t *testing.T) {
	assert := assert.New(t)

	for name, v := range verbNames {
		assert.Equal(name, v.String())
		c, ok := Parse("/"+strings.ToUpper(name), "/")
		assert.True(ok)
		assert.Equal(v, c.Verb)
		assert.NotEmpty(Usage(v, "/"))
	}
	assert.Equal("unknown", VerbUnknown.String())
	assert.Len(allVerbs, len(verbNames))

	assert.True(VerbGroupName.Mutating())
	assert.True(VerbAddUser.Mutating())
	assert.False(VerbGroupInfo.Mutating())
	assert.False(VerbHelp.Mutating())

	help := HelpText("/")
	assert.Contains(help, "/nicknames on <nickname>")
	assert.Contains(help, "/target on <uid>")
}

func TestSingleEmoji(t *testing.T) {
	assert := assert.New(t)

	for _, s := range []string{"🔥", "👍", "👍🏽", "❤️", "⭐", "🇯🇵", "👨‍👩‍👧", "1️⃣", "#️⃣", "*️⃣", "↔️"} {
		assert.True(SingleEmoji(s), s)
	}
	for _, s := range []string{"", "fire", "a", "🔥🔥", "🔥x", "x🔥", ":fire:", "1", "#", "1️⃣2️⃣"} {
		assert.False(SingleEmoji(s), s)
	}
}
