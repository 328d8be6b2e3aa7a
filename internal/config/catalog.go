package config

// MethodDef is one communication channel in the global catalog.
type MethodDef struct {
	ID string `yaml:"id"`

	// Distance-based methods cover Speed pixels per day. The others take
	// Time days whatever the distance.
	ByDistance bool    `yaml:"by_distance"`
	Speed      float64 `yaml:"speed,omitempty"`
	Time       float64 `yaml:"time,omitempty"`

	// Freq weights how often a connection is given this method.
	Freq float64 `yaml:"freq"`
}

// SpeedPerTick returns the fraction of a connection of length dist that
// this method covers in one tick.
func (m MethodDef) SpeedPerTick(dist float64, dayTicks int) float64 {
	if m.ByDistance {
		if dist <= 0 {
			return 1
		}
		return m.Speed / (float64(dayTicks) * dist)
	}
	return 1 / (float64(dayTicks) * m.Time)
}

// TargetKind is what an action is aimed at.
type TargetKind string

const (
	TargetPerson     TargetKind = "person"
	TargetConnection TargetKind = "connection"
	TargetArea       TargetKind = "area"
)

// DayRange is a triangular distribution over days.
type DayRange struct {
	Min  float64 `yaml:"min"`
	Mode float64 `yaml:"mode"`
	Max  float64 `yaml:"max"`
}

// NewsText is one weighted alternative for an announcement.
// Placeholders: %t duration, %r day range, %p/%P person, %a area, %c connection.
type NewsText struct {
	Text   string  `yaml:"text"`
	Weight float64 `yaml:"weight"`
}

// ActionDef describes an action the player can buy.
type ActionDef struct {
	ID      string     `yaml:"id"`
	Desc    string     `yaml:"desc"`
	Target  TargetKind `yaml:"target"`
	Radius  float64    `yaml:"radius,omitempty"` // area actions only
	Cost    float64    `yaml:"cost"`
	Affects []string   `yaml:"affects"`
	Time    DayRange   `yaml:"time"`

	// An empty Text among the alternatives means "no announcement".
	NewsStart []NewsText `yaml:"news_start,omitempty"`
	NewsEnd   []NewsText `yaml:"news_end,omitempty"`
}

// DefaultMethods returns the stock method catalog.
func DefaultMethods() []MethodDef {
	return []MethodDef{
		{ID: "phone", Time: 3, Freq: 5},
		{ID: "in person", ByDistance: true, Speed: 10, Freq: 10},
		{ID: "e-mail", Time: 1.5, Freq: 2},
		{ID: "fax", Time: 4, Freq: 1},
		{ID: "mail", ByDistance: true, Speed: 15, Freq: 8},
		{ID: "carrier pigeon", ByDistance: true, Speed: 20, Freq: 1},
		{ID: "message in a bottle", ByDistance: true, Speed: 5, Freq: 5},
		{ID: "telepathy", Time: 1, Freq: 0.5},
		{ID: "beacon", ByDistance: true, Speed: 15, Freq: 3},
		{ID: "drums", ByDistance: true, Speed: 15, Freq: 4},
		{ID: "radio", Time: 6, Freq: 6},
		{ID: "pager", Time: 2, Freq: 2},
		{ID: "newspaper crossword", Time: 14, Freq: 1},
		{ID: "skywriting", Time: 7, Freq: 0.5},
		{ID: "telegraph", Time: 7, Freq: 3},
	}
}

func allMethodIDs() []string {
	ms := DefaultMethods()
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

// DefaultActions returns the stock action catalog.
func DefaultActions() []ActionDef {
	return []ActionDef{
		{
			ID: "mugger", Desc: "hire a mugger", Target: TargetPerson, Cost: 15,
			Affects: []string{"in person"},
			Time:    DayRange{2, 3, 5},
			NewsStart: []NewsText{
				{Text: "%P was mugged on the way home and is staying indoors for %t.", Weight: 1},
				{Text: "", Weight: 1},
			},
		},
		{
			ID: "cut-phone", Desc: "cut phone line", Target: TargetConnection, Cost: 25,
			Affects: []string{"phone", "fax", "telegraph"},
			Time:    DayRange{5, 7, 10},
			NewsStart: []NewsText{
				{Text: "An engineer will be sent to fix reported telephone outages.  Job time estimate: %t.", Weight: 1},
			},
			NewsEnd: []NewsText{
				{Text: "Telephone service between %c has been restored.", Weight: 1},
			},
		},
		{
			ID: "jamming", Desc: "broadcast jamming signal", Target: TargetArea, Radius: 100, Cost: 100,
			Affects: []string{"telepathy", "radio", "pager"},
			Time:    DayRange{4, 6, 7},
			NewsStart: []NewsText{
				{Text: "Disruptions to wireless services have been detected in %a.  We expect to find the source in %r.", Weight: 1},
			},
			NewsEnd: []NewsText{
				{Text: "The source of the interference in %a has been found and switched off.", Weight: 1},
			},
		},
		{
			ID: "virus", Desc: "send virus to computer", Target: TargetPerson, Cost: 35,
			Affects: []string{"e-mail", "fax"},
			Time:    DayRange{7, 8, 10},
		},
		{
			ID: "pigeon", Desc: "shoot down a pigeon", Target: TargetConnection, Cost: 45,
			Affects: []string{"carrier pigeon"},
			Time:    DayRange{10, 12, 14},
		},
		{
			ID: "crossword", Desc: "bribe newspaper editor not to include crossword message", Target: TargetConnection, Cost: 30,
			Affects: []string{"newspaper crossword"},
			Time:    DayRange{6, 7, 8},
		},
		{
			ID: "fog", Desc: "cause fog", Target: TargetArea, Radius: 150, Cost: 60,
			Affects: []string{"beacon"},
			Time:    DayRange{2, 4, 6},
			NewsStart: []NewsText{
				{Text: "Thick fog has rolled into %a.", Weight: 1},
			},
		},
		{
			ID: "loud-sound", Desc: "play a loud sound", Target: TargetArea, Radius: 80, Cost: 50,
			Affects: []string{"message in a bottle", "drums"},
			Time:    DayRange{1, 3, 4},
		},
		{
			ID: "hit", Desc: "order a hit", Target: TargetPerson, Cost: 250,
			Affects: allMethodIDs(),
			Time:    DayRange{10, 14, 21},
			NewsStart: []NewsText{
				{Text: "%P has gone missing.  Police are searching the area.", Weight: 1},
			},
			NewsEnd: []NewsText{
				{Text: "%P has turned up safe and well.", Weight: 1},
			},
		},
		{
			ID: "storm", Desc: "cause a storm", Target: TargetArea, Radius: 150, Cost: 250,
			Affects: []string{"phone", "fax", "carrier pigeon", "beacon", "telegraph"},
			Time:    DayRange{3, 4, 7},
			NewsStart: []NewsText{
				{Text: "A storm is battering %a.  Forecasters expect it to last %r.", Weight: 1},
			},
		},
		{
			ID: "earthquake", Desc: "cause an earthquake", Target: TargetArea, Radius: 200, Cost: 800,
			Affects: allMethodIDs(),
			Time:    DayRange{5, 10, 14},
			NewsStart: []NewsText{
				{Text: "An earthquake has struck %a.  Repairs are expected to take %t.", Weight: 1},
			},
			NewsEnd: []NewsText{
				{Text: "Life in %a is returning to normal after the earthquake.", Weight: 1},
			},
		},
		{
			ID: "riot", Desc: "incite a riot", Target: TargetArea, Radius: 100, Cost: 250,
			Affects: []string{"in person", "mail", "carrier pigeon", "beacon", "drums", "newspaper crossword"},
			Time:    DayRange{4, 6, 8},
			NewsStart: []NewsText{
				{Text: "Rioting has broken out in %a.", Weight: 1},
			},
		},
	}
}

// DefaultFacts returns the rumours a world may be generated with.
func DefaultFacts() []string {
	return []string{
		"your favourite game is Superman 64",
		"you're actually a vampire",
		"you hate fruit",
		"you're always contagious",
		"you hate rumours",
		"you have a monopoly on the world's supply of chocolate",
		"you're a politician at night",
		"you can't grow eyebrows",
		"you feed your guests to your pet dragon",
		"you stretch your children on a daily basis",
		"you lock up sane people in mental asylums",
		"you test cosmetics on babies",
		"you're scared of bright lights and are plotting to block out the Sun",
		"you hate snow",
		"you float in water and have more broomsticks than necessary",
	}
}
