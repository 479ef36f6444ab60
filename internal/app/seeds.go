package app

// scriptureSeeds is the starter corpus loaded on first run. Text is from
// the King James Version (public domain). Verse numbering starts at
// FirstVerse so partial chapters keep their canonical numbers.
type chapterSeed struct {
	Number     int
	FirstVerse int
	Verses     []string
}

type bookSeed struct {
	ID           string
	Title        string
	Abbreviation string
	SortOrder    int
	Chapters     []chapterSeed
}

var scriptureSeeds = []bookSeed{
	{
		ID:           "genesis",
		Title:        "Genesis",
		Abbreviation: "Gen",
		SortOrder:    1,
		Chapters: []chapterSeed{
			{
				Number:     1,
				FirstVerse: 1,
				Verses: []string{
					"In the beginning God created the heaven and the earth.",
					"And the earth was without form, and void; and darkness was upon the face of the deep. And the Spirit of God moved upon the face of the waters.",
					"And God said, Let there be light: and there was light.",
					"And God saw the light, that it was good: and God divided the light from the darkness.",
					"And God called the light Day, and the darkness he called Night. And the evening and the morning were the first day.",
				},
			},
		},
	},
	{
		ID:           "psalms",
		Title:        "Psalms",
		Abbreviation: "Ps",
		SortOrder:    2,
		Chapters: []chapterSeed{
			{
				Number:     23,
				FirstVerse: 1,
				Verses: []string{
					"The LORD is my shepherd; I shall not want.",
					"He maketh me to lie down in green pastures: he leadeth me beside the still waters.",
					"He restoreth my soul: he leadeth me in the paths of righteousness for his name's sake.",
					"Yea, though I walk through the valley of the shadow of death, I will fear no evil: for thou art with me; thy rod and thy staff they comfort me.",
					"Thou preparest a table before me in the presence of mine enemies: thou anointest my head with oil; my cup runneth over.",
					"Surely goodness and mercy shall follow me all the days of my life: and I will dwell in the house of the LORD for ever.",
				},
			},
		},
	},
	{
		ID:           "john",
		Title:        "John",
		Abbreviation: "Jn",
		SortOrder:    3,
		Chapters: []chapterSeed{
			{
				Number:     3,
				FirstVerse: 14,
				Verses: []string{
					"And as Moses lifted up the serpent in the wilderness, even so must the Son of man be lifted up:",
					"That whosoever believeth in him should not perish, but have eternal life.",
					"For God so loved the world, that he gave his only begotten Son, that whosoever believeth in him should not perish, but have everlasting life.",
					"For God sent not his Son into the world to condemn the world; but that the world through him might be saved.",
				},
			},
		},
	},
}
