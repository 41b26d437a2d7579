package models

import "time"

type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	Role                 string     `json:"role"` // "owner" or "employee"
	CompanyID            *string    `json:"companyId,omitempty"`
	PlanID               string     `json:"planId"`
	StoriesQuota         int        `json:"storiesQuota"`
	StoriesUsedThisMonth int        `json:"storiesUsedThisMonth"`
	UsageResetAt         *time.Time `json:"usageResetAt,omitempty"`
	StripeCustomerID     *string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string    `json:"stripeSubscriptionId,omitempty"`
	SubscriptionActive   bool       `json:"subscriptionActive"`
	LinkedInConnected    bool       `json:"linkedinConnected"`
	CreatedAt            time.Time  `json:"createdAt"`
}

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type CompanyInvite struct {
	ID        string     `json:"id"`
	CompanyID string     `json:"companyId"`
	Email     string     `json:"email"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CaseStudy struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Title             string     `json:"title"`
	LeadEntity        string     `json:"leadEntity"`
	PartnerEntity     string     `json:"partnerEntity"`
	Language          string     `json:"language"`
	ProviderSummary   *string    `json:"providerSummary,omitempty"`
	ClientSummary     *string    `json:"clientSummary,omitempty"`
	FinalSummary      *string    `json:"finalSummary,omitempty"`
	SentimentScore    *float64   `json:"sentimentScore,omitempty"`
	SentimentCategory *string    `json:"sentimentCategory,omitempty"`
	LinkedInPost      *string    `json:"linkedinPost,omitempty"`
	VideoID           *string    `json:"videoId,omitempty"`
	PodcastID         *string    `json:"podcastId,omitempty"`
	StoryCounted      bool       `json:"storyCounted"`
	ClientSubmitted   bool       `json:"clientSubmitted"`
	Labels            []Label    `json:"labels,omitempty"`
	Creator           *User      `json:"creator,omitempty"`
	GeneratedAt       *time.Time `json:"generatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// StoryMetadata is the extracted sidecar of a generated case study: quote
// highlights, corrected/conflicted replies and the sentiment verdict.
type StoryMetadata struct {
	Quotes            []string `json:"quotes"`
	CorrectedReplies  []string `json:"correctedReplies"`
	Takeaways         []string `json:"takeaways"`
	SentimentScore    float64  `json:"sentimentScore"`
	SentimentCategory string   `json:"sentimentCategory"`
}

type ProviderInterview struct {
	ID          string    `json:"id"`
	CaseStudyID string    `json:"caseStudyId"`
	Transcript  string    `json:"transcript"`
	Summary     *string   `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ClientInterview struct {
	ID          string    `json:"id"`
	CaseStudyID string    `json:"caseStudyId"`
	Transcript  string    `json:"transcript"`
	Summary     *string   `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type InviteToken struct {
	ID          string     `json:"id"`
	Token       string     `json:"token"`
	CaseStudyID string     `json:"caseStudyId"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Label struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type StoryFeedback struct {
	ID          string    `json:"id"`
	CaseStudyID string    `json:"caseStudyId"`
	UserID      string    `json:"userId"`
	Liked       bool      `json:"liked"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type OAuthState struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	Provider  string     `json:"provider"` // "linkedin", "slack" or "teams"
	UserID    string     `json:"userId"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

// Installation is a workspace/tenant scoped OAuth credential for Slack or
// Microsoft Teams; the token itself is stored encrypted.
type Installation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Provider   string    `json:"provider"` // "slack" or "teams"
	ExternalID string    `json:"externalId"`
	TeamName   *string   `json:"teamName,omitempty"`
	ChannelID  *string   `json:"channelId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type BillingPlan struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	PriceCents    int     `json:"priceCents"`
	Currency      string  `json:"currency"`
	Interval      string  `json:"interval"`
	StoriesQuota  int     `json:"storiesQuota"`
	StripePriceID *string `json:"stripePriceId,omitempty"`
	IsActive      bool    `json:"isActive"`
}
