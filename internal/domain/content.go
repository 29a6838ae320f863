package domain

// Question is a single generated prompt shown to a visitor.
type Question struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// QuestionSet is a generated batch of questions.
type QuestionSet struct {
	SessionID string     `json:"sessionId"`
	Questions []Question `json:"questions"`
}

// Stat keys carried by every card, in display order.
const (
	StatAttack  = "attack"
	StatDefense = "defense"
	StatMagic   = "magic"
	StatAgility = "agility"
	StatLuck    = "luck"
)

// StatKeys lists the fixed card stats in display order.
var StatKeys = []string{StatAttack, StatDefense, StatMagic, StatAgility, StatLuck}

// CardRecord is the structured content a card is rendered from.
type CardRecord struct {
	Name        string         `json:"name"`
	Class       string         `json:"class"`
	Skill       string         `json:"skill"`
	Description string         `json:"description"`
	Stats       map[string]int `json:"stats"`
}
