package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-match-service/internal/domain"
	"quiz-match-service/internal/infra/memory"
)

func TestQuestionSetCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	loader := &countingLoader{
		QuestionSetLoader: memory.NewStaticQuestionSetLoader([]domain.QuestionSet{sampleSet()}),
	}
	cache := NewQuestionSetCache(client, loader, time.Minute)

	set, err := cache.GetQuestionSet(context.Background(), "maths", "7")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if len(set.Questions) != 1 || set.Questions[0].Answer != "4" {
		t.Fatalf("unexpected set %+v", set)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit redis, loader not incremented.
	set, err = cache.GetQuestionSet(context.Background(), "maths", "7")
	if err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if set.Questions[0].Text != "What is 2 + 2?" {
		t.Fatalf("cached set lost content: %+v", set)
	}
}

type countingLoader struct {
	memory.QuestionSetLoader
	calls int
}

func (l *countingLoader) LoadQuestionSet(ctx context.Context, subject, yearLevel string) (domain.QuestionSet, error) {
	l.calls++
	return l.QuestionSetLoader.LoadQuestionSet(ctx, subject, yearLevel)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		Subject:   "maths",
		YearLevel: "7",
		Questions: []domain.Question{
			{
				Text:             "What is 2 + 2?",
				Options:          []string{"3", "4", "5"},
				Answer:           "4",
				Marks:            1,
				TimeLimitSeconds: 30,
			},
		},
	}
}
