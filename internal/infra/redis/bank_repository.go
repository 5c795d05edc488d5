package redis

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"knowledge-test-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches the full question bank from a backing store.
type BankLoader interface {
	LoadSections(ctx context.Context) ([]domain.Section, error)
}

// BankRepository caches the question bank in Redis and falls back to a
// loader on cache miss. The bank is stored as four hashes keyed by
// question ID:
//
//	HSET kt:bank:answers    {questionID} {0|1}
//	HSET kt:bank:categories {questionID} {category}
//	HSET kt:bank:prompts    {questionID} {prompt}
//	HSET kt:bank:tooltips   {questionID} {tooltip}
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankRepository(client *redis.Client, loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const (
	answersKey    = "kt:bank:answers"
	categoriesKey = "kt:bank:categories"
	promptsKey    = "kt:bank:prompts"
	tooltipsKey   = "kt:bank:tooltips"
)

func (r *BankRepository) Sections(ctx context.Context) ([]domain.Section, error) {
	answers, err := r.client.HGetAll(ctx, answersKey).Result()
	if err == nil && len(answers) > 0 {
		return r.sectionsFromCache(ctx, answers)
	}

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := r.client.HGetAll(ctx, answersKey).Result()
		if err == nil && len(answers) > 0 {
			return r.sectionsFromCache(ctx, answers)
		}

		sections, err := r.loader.LoadSections(ctx)
		if err != nil {
			return nil, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, section := range sections {
			for _, q := range section.Questions {
				id := strconv.Itoa(q.ID)
				answer := "0"
				if q.CorrectAnswer {
					answer = "1"
				}
				pipe.HSet(ctx, answersKey, id, answer)
				pipe.HSet(ctx, categoriesKey, id, q.Category)
				pipe.HSet(ctx, promptsKey, id, q.Prompt)
				pipe.HSet(ctx, tooltipsKey, id, q.Tooltip)
			}
		}
		if ttl > 0 {
			pipe.Expire(ctx, answersKey, ttl)
			pipe.Expire(ctx, categoriesKey, ttl)
			pipe.Expire(ctx, promptsKey, ttl)
			pipe.Expire(ctx, tooltipsKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return sections, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Section), nil
}

// sectionsFromCache rebuilds the bank from the hashes.
func (r *BankRepository) sectionsFromCache(ctx context.Context, answers map[string]string) ([]domain.Section, error) {
	categories, err := r.client.HGetAll(ctx, categoriesKey).Result()
	if err != nil {
		return nil, err
	}
	prompts, _ := r.client.HGetAll(ctx, promptsKey).Result()
	tooltips, _ := r.client.HGetAll(ctx, tooltipsKey).Result()

	byCategory := make(map[int][]domain.Question)
	for idStr, answer := range answers {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		category, err := strconv.Atoi(categories[idStr])
		if err != nil {
			continue
		}
		byCategory[category] = append(byCategory[category], domain.Question{
			Category:      category,
			ID:            id,
			Prompt:        prompts[idStr],
			Tooltip:       tooltips[idStr],
			CorrectAnswer: answer == "1",
		})
	}

	order := make([]int, 0, len(byCategory))
	for category := range byCategory {
		order = append(order, category)
	}
	sort.Ints(order)

	sections := make([]domain.Section, 0, len(order))
	for _, category := range order {
		questions := byCategory[category]
		sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
		sections = append(sections, domain.Section{Category: category, Questions: questions})
	}
	return sections, nil
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
