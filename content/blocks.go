// Package content defines the typed block catalog that pages compose into an
// ordered content stream, the JSON codec that persists streams, and the word
// counting behind reading-time estimates.
package content

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// BlockType identifies one of the fixed content block variants.
type BlockType string

const (
	TypeHeading     BlockType = "heading"
	TypeRichText    BlockType = "text"
	TypeImage       BlockType = "image"
	TypeQuote       BlockType = "quote"
	TypeButton      BlockType = "button"
	TypeSpacer      BlockType = "spacer"
	TypeHero        BlockType = "hero"
	TypeCTA         BlockType = "cta"
	TypeAuthorBio   BlockType = "author_bio"
	TypeRecentPosts BlockType = "recent_posts"
)

// Value is the typed payload of a content block. The set of implementations
// is closed: every variant lives in this package.
type Value interface {
	// WordCount returns the number of whitespace-delimited words across the
	// block's string-typed fields.
	WordCount() int
	// Validate reports field-level problems as FieldErrors.
	Validate() error

	setDefaults()
}

// Block is one element of a page's content stream.
type Block struct {
	ID    string
	Type  BlockType
	Value Value
}

// NewBlock creates a block of the given type with a fresh id and defaults
// applied.
func NewBlock(t BlockType) (Block, error) {
	v, err := newValue(t)
	if err != nil {
		return Block{}, err
	}
	v.setDefaults()
	return Block{ID: uuid.NewString(), Type: t, Value: v}, nil
}

// newValue returns an empty payload for t. Boolean fields whose default is
// true are preset here so that json.Unmarshal only overrides them when the
// wire form carries an explicit false.
func newValue(t BlockType) (Value, error) {
	switch t {
	case TypeHeading:
		return &Heading{}, nil
	case TypeRichText:
		return &RichText{}, nil
	case TypeImage:
		return &Image{}, nil
	case TypeQuote:
		return &Quote{}, nil
	case TypeButton:
		return &Button{}, nil
	case TypeSpacer:
		return &Spacer{}, nil
	case TypeHero:
		return &Hero{Overlay: true}, nil
	case TypeCTA:
		return &CallToAction{}, nil
	case TypeAuthorBio:
		return &AuthorBio{ShowSocialIcons: true}, nil
	case TypeRecentPosts:
		return &RecentPosts{ShowExcerpt: true, ShowDate: true, ShowAuthor: true, ShowImage: true}, nil
	default:
		return nil, fmt.Errorf("content: unknown block type %q", t)
	}
}

type blockEnvelope struct {
	Type  BlockType       `json:"type"`
	ID    string          `json:"id,omitempty"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the block as its wire envelope {type, id, value}.
func (b Block) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(b.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blockEnvelope{Type: b.Type, ID: b.ID, Value: raw})
}

// UnmarshalJSON decodes a wire envelope into a typed block, applying the
// variant's defaults to absent fields.
func (b *Block) UnmarshalJSON(data []byte) error {
	var env blockEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	v, err := newValue(env.Type)
	if err != nil {
		return err
	}
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, v); err != nil {
			return fmt.Errorf("content: decode %s block: %w", env.Type, err)
		}
	}
	v.setDefaults()
	b.ID = env.ID
	b.Type = env.Type
	b.Value = v
	return nil
}

// Stream is the ordered list of content blocks composing a page body.
// Order is meaningful: blocks render top to bottom.
type Stream []Block

// ParseStream decodes a stream from its wire JSON form.
func ParseStream(data []byte) (Stream, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s Stream
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Value implements driver.Valuer, storing the stream as its JSON envelope
// array. An empty stream is stored as "[]".
func (s Stream) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for stream columns read back from the store.
func (s *Stream) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return s.scanJSON(v)
	case string:
		return s.scanJSON([]byte(v))
	default:
		return fmt.Errorf("content: cannot scan %T into Stream", src)
	}
}

func (s *Stream) scanJSON(data []byte) error {
	if len(data) == 0 {
		*s = nil
		return nil
	}
	parsed, err := ParseStream(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Validate validates every block, prefixing field names with the block's
// position so the admin form can point at the offending block.
func (s Stream) Validate() error {
	var errs FieldErrors
	for i, b := range s {
		if b.Value == nil {
			errs.Add(fmt.Sprintf("body[%d]", i), "block has no value")
			continue
		}
		var ferrs FieldErrors
		if err := b.Value.Validate(); err != nil && !errorsAs(err, &ferrs) {
			errs.Add(fmt.Sprintf("body[%d]", i), err.Error())
			continue
		}
		for _, fe := range ferrs {
			errs.Add(fmt.Sprintf("body[%d].%s", i, fe.Field), fe.Message)
		}
	}
	return errs.Err()
}

func errorsAs(err error, target *FieldErrors) bool {
	fe, ok := err.(FieldErrors)
	if ok {
		*target = fe
	}
	return ok
}

// Heading renders a section heading at a chosen level.
type Heading struct {
	Text      string `json:"heading_text"`
	Level     string `json:"heading_level"`
	Alignment string `json:"alignment"`
}

func (h *Heading) setDefaults() {
	if h.Level == "" {
		h.Level = "h2"
	}
	if h.Alignment == "" {
		h.Alignment = "left"
	}
}

func (h *Heading) WordCount() int {
	return CountWords(h.Text) + CountWords(h.Level) + CountWords(h.Alignment)
}

func (h *Heading) Validate() error {
	var errs FieldErrors
	requireText(&errs, "heading_text", h.Text, 255)
	requireChoice(&errs, "heading_level", h.Level, "h1", "h2", "h3", "h4", "h5", "h6")
	requireChoice(&errs, "alignment", h.Alignment, "left", "center", "right")
	return errs.Err()
}

// RichText carries free-form markdown content.
type RichText struct {
	Text      string `json:"text"`
	Alignment string `json:"alignment"`
}

func (r *RichText) setDefaults() {
	if r.Alignment == "" {
		r.Alignment = "left"
	}
}

func (r *RichText) WordCount() int {
	return CountWords(r.Text) + CountWords(r.Alignment)
}

func (r *RichText) Validate() error {
	var errs FieldErrors
	requireText(&errs, "text", r.Text, 0)
	requireChoice(&errs, "alignment", r.Alignment, "left", "center", "right", "justify")
	return errs.Err()
}

// Image embeds an uploaded image with optional caption and alt text.
type Image struct {
	Src       string `json:"image"`
	Caption   string `json:"caption"`
	AltText   string `json:"alt_text"`
	Alignment string `json:"alignment"`
}

func (i *Image) setDefaults() {
	if i.Alignment == "" {
		i.Alignment = "center"
	}
}

func (i *Image) WordCount() int {
	return CountWords(i.Src) + CountWords(i.Caption) + CountWords(i.AltText) + CountWords(i.Alignment)
}

func (i *Image) Validate() error {
	var errs FieldErrors
	requireText(&errs, "image", i.Src, 0)
	maxLen(&errs, "caption", i.Caption, 255)
	maxLen(&errs, "alt_text", i.AltText, 255)
	requireChoice(&errs, "alignment", i.Alignment, "left", "center", "right", "full")
	return errs.Err()
}

// Quote is a blockquote with optional attribution.
type Quote struct {
	Text        string `json:"quote"`
	Author      string `json:"author"`
	AuthorTitle string `json:"author_title"`
	Style       string `json:"style"`
}

func (q *Quote) setDefaults() {
	if q.Style == "" {
		q.Style = "default"
	}
}

func (q *Quote) WordCount() int {
	return CountWords(q.Text) + CountWords(q.Author) + CountWords(q.AuthorTitle) + CountWords(q.Style)
}

func (q *Quote) Validate() error {
	var errs FieldErrors
	requireText(&errs, "quote", q.Text, 0)
	maxLen(&errs, "author", q.Author, 100)
	maxLen(&errs, "author_title", q.AuthorTitle, 100)
	requireChoice(&errs, "style", q.Style, "default", "large", "bordered", "accent")
	return errs.Err()
}

// Button is a standalone link button. Its text must survive trimming so
// screen readers always have something to announce.
type Button struct {
	Text   string `json:"button_text"`
	URL    string `json:"button_url"`
	Style  string `json:"button_style"`
	Size   string `json:"button_size"`
	NewTab bool   `json:"open_in_new_tab"`
}

func (b *Button) setDefaults() {
	if b.Style == "" {
		b.Style = "primary"
	}
	if b.Size == "" {
		b.Size = "md"
	}
}

func (b *Button) WordCount() int {
	return CountWords(b.Text) + CountWords(b.URL) + CountWords(b.Style) + CountWords(b.Size)
}

func (b *Button) Validate() error {
	var errs FieldErrors
	if strings.TrimSpace(b.Text) == "" {
		errs.Add("button_text", "button text is required and cannot be empty")
	} else {
		maxLen(&errs, "button_text", b.Text, 50)
	}
	requireText(&errs, "button_url", b.URL, 0)
	requireChoice(&errs, "button_style", b.Style, "primary", "secondary", "accent", "ghost", "link")
	requireChoice(&errs, "button_size", b.Size, "xs", "sm", "md", "lg")
	return errs.Err()
}

// Spacer adds vertical whitespace between blocks.
type Spacer struct {
	Height string `json:"height"`
}

func (s *Spacer) setDefaults() {
	if s.Height == "" {
		s.Height = "medium"
	}
}

func (s *Spacer) WordCount() int {
	return CountWords(s.Height)
}

func (s *Spacer) Validate() error {
	var errs FieldErrors
	requireChoice(&errs, "height", s.Height, "small", "medium", "large", "xlarge")
	return errs.Err()
}

// Hero is a prominent page header with an optional call-to-action button.
type Hero struct {
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	BackgroundSrc string `json:"background_image"`
	Overlay       bool   `json:"background_overlay"`
	TextColor     string `json:"text_color"`
	Height        string `json:"height"`
	CTAText       string `json:"cta_text"`
	CTALink       string `json:"cta_link"`
	CTAStyle      string `json:"cta_style"`
}

func (h *Hero) setDefaults() {
	if h.TextColor == "" {
		h.TextColor = "white"
	}
	if h.Height == "" {
		h.Height = "medium"
	}
	if h.CTAStyle == "" {
		h.CTAStyle = "primary"
	}
}

func (h *Hero) WordCount() int {
	return CountWords(h.Title) + CountWords(h.Subtitle) + CountWords(h.BackgroundSrc) +
		CountWords(h.TextColor) + CountWords(h.Height) +
		CountWords(h.CTAText) + CountWords(h.CTALink) + CountWords(h.CTAStyle)
}

func (h *Hero) Validate() error {
	var errs FieldErrors
	requireText(&errs, "title", h.Title, 200)
	maxLen(&errs, "subtitle", h.Subtitle, 300)
	requireChoice(&errs, "text_color", h.TextColor, "white", "black", "primary")
	requireChoice(&errs, "height", h.Height, "small", "medium", "large", "full")
	requireChoice(&errs, "cta_style", h.CTAStyle, "primary", "secondary", "outline")
	validateCTAPair(&errs, "cta_text", "cta_link", h.CTAText, h.CTALink)
	maxLen(&errs, "cta_text", h.CTAText, 50)
	return errs.Err()
}

// CallToAction is an engagement section with a required button.
type CallToAction struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ButtonText  string `json:"button_text"`
	ButtonLink  string `json:"button_link"`
	ButtonStyle string `json:"button_style"`
	Background  string `json:"background_color"`
	Alignment   string `json:"text_alignment"`
}

func (c *CallToAction) setDefaults() {
	if c.ButtonStyle == "" {
		c.ButtonStyle = "primary"
	}
	if c.Background == "" {
		c.Background = "base-100"
	}
	if c.Alignment == "" {
		c.Alignment = "center"
	}
}

func (c *CallToAction) WordCount() int {
	return CountWords(c.Title) + CountWords(c.Description) + CountWords(c.ButtonText) +
		CountWords(c.ButtonLink) + CountWords(c.ButtonStyle) + CountWords(c.Background) +
		CountWords(c.Alignment)
}

func (c *CallToAction) Validate() error {
	var errs FieldErrors
	requireText(&errs, "title", c.Title, 100)
	maxLen(&errs, "description", c.Description, 300)
	if strings.TrimSpace(c.ButtonText) == "" {
		errs.Add("button_text", "button text is required and cannot be empty")
	} else {
		maxLen(&errs, "button_text", c.ButtonText, 50)
	}
	requireText(&errs, "button_link", c.ButtonLink, 0)
	requireChoice(&errs, "button_style", c.ButtonStyle, "primary", "secondary", "accent", "ghost", "outline")
	requireChoice(&errs, "background_color", c.Background, "transparent", "base-100", "base-200", "primary", "secondary", "accent")
	requireChoice(&errs, "text_alignment", c.Alignment, "left", "center", "right")
	return errs.Err()
}

// AuthorBio presents the author's biography and social links.
type AuthorBio struct {
	Name            string `json:"author_name"`
	ImageSrc        string `json:"author_image"`
	Bio             string `json:"bio_text"`
	WebsiteURL      string `json:"website_url"`
	TwitterURL      string `json:"twitter_url"`
	LinkedInURL     string `json:"linkedin_url"`
	GitHubURL       string `json:"github_url"`
	Email           string `json:"email"`
	ShowSocialIcons bool   `json:"show_social_icons"`
}

func (a *AuthorBio) setDefaults() {}

func (a *AuthorBio) WordCount() int {
	return CountWords(a.Name) + CountWords(a.ImageSrc) + CountWords(a.Bio) +
		CountWords(a.WebsiteURL) + CountWords(a.TwitterURL) + CountWords(a.LinkedInURL) +
		CountWords(a.GitHubURL) + CountWords(a.Email)
}

func (a *AuthorBio) Validate() error {
	var errs FieldErrors
	requireText(&errs, "author_name", a.Name, 100)
	requireText(&errs, "bio_text", a.Bio, 0)
	return errs.Err()
}

// RecentPosts lists the newest blog posts inline on a page.
type RecentPosts struct {
	Title       string `json:"title"`
	Count       int    `json:"number_of_posts"`
	ShowExcerpt bool   `json:"show_excerpt"`
	ShowDate    bool   `json:"show_date"`
	ShowAuthor  bool   `json:"show_author"`
	ShowImage   bool   `json:"show_featured_image"`
	Layout      string `json:"layout_style"`
}

func (r *RecentPosts) setDefaults() {
	if r.Title == "" {
		r.Title = "Recent Posts"
	}
	if r.Count == 0 {
		r.Count = 5
	}
	if r.Layout == "" {
		r.Layout = "cards"
	}
}

func (r *RecentPosts) WordCount() int {
	return CountWords(r.Title) + CountWords(r.Layout)
}

func (r *RecentPosts) Validate() error {
	var errs FieldErrors
	requireText(&errs, "title", r.Title, 100)
	if r.Count < 1 || r.Count > 20 {
		errs.Add("number_of_posts", "number of posts must be between 1 and 20")
	}
	requireChoice(&errs, "layout_style", r.Layout, "list", "grid", "cards")
	return errs.Err()
}

// requireText records an error when s is blank, and a length error when max
// is positive and exceeded (counted in runes).
func requireText(errs *FieldErrors, field, s string, max int) {
	if strings.TrimSpace(s) == "" {
		errs.Add(field, field+" is required")
		return
	}
	maxLen(errs, field, s, max)
}

func maxLen(errs *FieldErrors, field, s string, max int) {
	if max > 0 && utf8.RuneCountInString(s) > max {
		errs.Add(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
}

func requireChoice(errs *FieldErrors, field, v string, choices ...string) {
	for _, c := range choices {
		if v == c {
			return
		}
	}
	errs.Add(field, fmt.Sprintf("%q is not a valid choice for %s", v, field))
}

// validateCTAPair enforces that call-to-action text and link travel together
// and that the text is not just whitespace.
func validateCTAPair(errs *FieldErrors, textField, linkField, text, link string) {
	if link != "" && text == "" {
		errs.Add(textField, "button text is required when a link is provided")
	}
	if text != "" && strings.TrimSpace(text) == "" {
		errs.Add(textField, "button text cannot be empty or only whitespace")
	}
	if text != "" && link == "" {
		errs.Add(linkField, "a link is required when button text is provided")
	}
}
