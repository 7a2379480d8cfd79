package roomid

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"fawn", "foal", "lamb", "calf", "porcupine", "raccoon", "mole", "ferret", "weasel", "beaver",
	"seahorse", "starfish", "dolphin", "whale", "narwhal", "penguin", "flamingo", "pelican", "swallow", "sparrow",
	"robin", "toucan", "parrot", "canary", "cockatoo",
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "blue", "red", "green", "bright", "gentle",
	"brave", "calm", "swift", "silent", "noisy", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var extras = []string{
	"dragon", "unicorn", "griffin", "phoenix", "fairy", "gnome", "sprite", "pixie", "mermaid", "elf",
	"lantern", "puddle", "pebble", "cottage", "rocket", "comet", "orbit", "nebula", "canyon", "ridge",
	"sunbeam", "stardust", "glimmer", "echo", "marble", "maple", "hazel", "breeze", "meadow", "willow",
}
