package models

import "time"

// Skill levels
const (
	SkillLevelBeginner     = "beginner"
	SkillLevelIntermediate = "intermediate"
	SkillLevelAdvanced     = "advanced"
)

// Skill directions: a user either teaches a skill or wants to learn it.
const (
	SkillTypeTeaching = "teaching"
	SkillTypeLearning = "learning"
)

type Skill struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name" example:"Go"`
	Category  string    `json:"category" db:"category" example:"Programming"`
	Level     string    `json:"level" db:"level" example:"advanced"`
	Type      string    `json:"type" db:"skill_type" example:"teaching"`
	Priority  int       `json:"priority" db:"priority"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
