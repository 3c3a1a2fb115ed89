// Package conversation holds the canned message pool used by the auto-chat
// scheduler: themed lines, time-of-day lines, and short reactions to user
// utterances. Content selection is pure bookkeeping; it carries no
// scheduling or concurrency concerns.
package conversation

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ThemeGreeting is the theme used for the first message of every session.
const ThemeGreeting = "greeting"

// DefaultTheme is used when a requested theme is unknown.
const DefaultTheme = "casual"

// timeBasedProbability is the chance a scheduled message is replaced by a
// time-of-day line instead of the configured theme.
const timeBasedProbability = 0.3

// Patterns is the message pool. Loadable from YAML so deployments can
// swap the content without a rebuild; defaults are compiled in.
type Patterns struct {
	Themes    map[string][]string `yaml:"themes"`
	TimeOfDay map[string][]string `yaml:"time_of_day"`
	Reactions map[string][]string `yaml:"reactions"`

	// Selection is called from the scheduler loop, result consumers,
	// and read pumps at once; rand.Rand is not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

func (p *Patterns) pick(lines []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lines[p.rng.Intn(len(lines))]
}

func (p *Patterns) chance(probability float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < probability
}

// Default returns the built-in Korean message pool.
func Default() *Patterns {
	return &Patterns{
		Themes: map[string][]string{
			ThemeGreeting: {
				"안녕하세요! 오늘 기분이 어떠세요?",
				"반갑습니다! 음성 대화를 시작해볼까요?",
				"어서오세요! 오늘도 함께 대화해요.",
				"환영합니다! 무엇이든 편하게 말씀하세요.",
			},
			"casual": {
				"오늘 하루는 어떻게 보내고 계신가요?",
				"취미가 뭔지 궁금해요! 어떤 걸 좋아하시나요?",
				"좋아하는 음식이 있으신가요?",
				"최근에 재미있는 일이 있었나요?",
				"주말에는 뭘 하며 시간을 보내시나요?",
				"여행 가고 싶은 곳이 있으신가요?",
			},
			"weather": {
				"오늘 날씨가 정말 좋네요!",
				"밖이 추운 것 같은데, 따뜻하게 입으셨나요?",
				"햇살이 참 따뜻하네요!",
				"바람이 시원하게 부는 날이네요.",
				"오늘 같은 날씨엔 따뜻한 차 한 잔이 좋겠어요.",
			},
			"educational": {
				"새로운 언어를 배우고 계신가요?",
				"오늘 새로 배운 것이 있나요?",
				"읽고 있는 책이 있으신가요?",
				"한국어 발음 연습을 함께 해볼까요?",
				"새로운 취미를 배워보는 건 어떨까요?",
			},
			"entertainment": {
				"재미있는 농담 하나 들려드릴까요?",
				"최근에 본 영화 중에 재미있는 게 있나요?",
				"좋아하는 드라마나 예능 프로그램이 있나요?",
				"어떤 음악을 즐겨 듣시나요?",
			},
			"motivational": {
				"오늘도 화이팅하세요!",
				"당신은 충분히 잘하고 계세요.",
				"작은 진전도 큰 발전이에요.",
				"당신만의 속도로 천천히 가도 괜찮아요.",
			},
			"questions": {
				"혹시 질문이 있으시면 언제든 말씀하세요.",
				"제가 도울 수 있는 일이 있나요?",
				"어떤 이야기를 나누고 싶으신가요?",
				"음성 연습을 더 해보실까요?",
			},
		},
		TimeOfDay: map[string][]string{
			"morning": {
				"좋은 아침이에요! 잘 주무셨나요?",
				"아침 식사는 드셨나요?",
				"상쾌한 아침이네요!",
			},
			"afternoon": {
				"점심시간이네요, 식사하셨나요?",
				"오후 시간을 어떻게 보내고 계신가요?",
				"바쁜 하루 중간에 잠깐 쉬어가세요.",
			},
			"evening": {
				"하루 수고 많으셨어요!",
				"저녁 식사 맛있게 드세요.",
				"편안한 저녁 시간 되세요.",
			},
			"night": {
				"늦은 시간까지 수고하고 계시네요.",
				"편안한 밤 되세요.",
				"좋은 꿈 꾸세요!",
			},
		},
		Reactions: map[string][]string{
			"positive": {
				"정말 좋네요!",
				"멋져요!",
				"좋은 생각이네요!",
				"정말 인상적이에요!",
			},
			"neutral": {
				"그렇군요.",
				"말씀해 주셔서 감사해요.",
				"흥미로운 이야기네요.",
				"더 자세히 듣고 싶어요.",
			},
			"encouraging": {
				"힘내세요!",
				"잘 될 거예요!",
				"걱정하지 마세요.",
				"완벽하지 않아도 괜찮아요.",
			},
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load reads a YAML pattern pack from path. Sections omitted in the file
// fall back to the built-in defaults.
func Load(path string) (*Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}

	var loaded Patterns
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}

	p := Default()
	if len(loaded.Themes) > 0 {
		p.Themes = loaded.Themes
	}
	if len(loaded.TimeOfDay) > 0 {
		p.TimeOfDay = loaded.TimeOfDay
	}
	if len(loaded.Reactions) > 0 {
		p.Reactions = loaded.Reactions
	}
	if _, ok := p.Themes[ThemeGreeting]; !ok {
		return nil, fmt.Errorf("pattern file %s has no %q theme", path, ThemeGreeting)
	}
	return p, nil
}

// Greeting picks an opening line.
func (p *Patterns) Greeting() string {
	return p.Themed(ThemeGreeting)
}

// Themed picks a line from the given theme, falling back to the default
// theme when the requested one is unknown.
func (p *Patterns) Themed(theme string) string {
	lines, ok := p.Themes[theme]
	if !ok || len(lines) == 0 {
		lines = p.Themes[DefaultTheme]
	}
	return p.pick(lines)
}

// Contextual picks the next scheduled line for a theme, substituting a
// time-of-day line with a fixed probability.
func (p *Patterns) Contextual(theme string, now time.Time) string {
	if p.chance(timeBasedProbability) {
		return p.timeBased(now)
	}
	return p.Themed(theme)
}

func (p *Patterns) timeBased(now time.Time) string {
	lines := p.TimeOfDay[TimeSlot(now.Hour())]
	if len(lines) == 0 {
		return p.Themed(DefaultTheme)
	}
	return p.pick(lines)
}

// TimeSlot maps an hour of day onto a time-of-day section name.
func TimeSlot(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

var (
	positiveKeywords = []string{"좋", "훌륭", "멋진", "재미있", "행복", "기쁜", "즐거운"}
	negativeKeywords = []string{"나쁜", "슬픈", "힘든", "어려운", "피곤", "지친"}
)

// Reaction classifies a user utterance by keyword and picks a short
// reaction line for it.
func (p *Patterns) Reaction(utterance string) string {
	class := ClassifyUtterance(utterance)
	lines := p.Reactions[class]
	if len(lines) == 0 {
		return ""
	}
	return p.pick(lines)
}

// ClassifyUtterance buckets an utterance into a reaction class by simple
// keyword matching.
func ClassifyUtterance(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			return "positive"
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			return "encouraging"
		}
	}
	return "neutral"
}

// ThemeNames lists the selectable themes, sorted, excluding the
// greeting theme reserved for session openings.
func (p *Patterns) ThemeNames() []string {
	names := make([]string, 0, len(p.Themes))
	for name := range p.Themes {
		if name == ThemeGreeting {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTheme reports whether a theme exists in the pool.
func (p *Patterns) HasTheme(theme string) bool {
	_, ok := p.Themes[theme]
	return ok
}
