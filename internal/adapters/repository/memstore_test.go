package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	repository "github.com/circolo-dev/fantacircolo/internal/adapters/repository"
	"github.com/circolo-dev/fantacircolo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newUser(id, name string) model.User {
	return model.User{
		ID:          id,
		DisplayName: name,
		Email:       name + "@circolo.it",
		Credits:     100,
		Role:        model.RoleUser,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestMemStoreAllowList(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer func() { _ = store.Close() }()

		Convey("When an email has not been allowed", func() {
			ok, err := store.IsAllowed(ctx, "anna@circolo.it")

			Convey("Then the check is negative", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When an email is allowed", func() {
			So(store.Allow(ctx, "anna@circolo.it"), ShouldBeNil)

			Convey("Then the check is positive", func() {
				ok, err := store.IsAllowed(ctx, "anna@circolo.it")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})

			Convey("And allowing again is idempotent", func() {
				So(store.Allow(ctx, "anna@circolo.it"), ShouldBeNil)
				ok, _ := store.IsAllowed(ctx, "anna@circolo.it")
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestMemStoreUsers(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer func() { _ = store.Close() }()

		Convey("When creating a user", func() {
			So(store.CreateUser(ctx, newUser("u1", "anna")), ShouldBeNil)

			Convey("Then it can be fetched back", func() {
				u, err := store.GetUser(ctx, "u1")
				So(err, ShouldBeNil)
				So(u.DisplayName, ShouldEqual, "anna")
				So(u.Credits, ShouldEqual, 100)
			})

			Convey("And creating the same id again fails with ErrExists", func() {
				err := store.CreateUser(ctx, newUser("u1", "impostor"))
				So(errors.Is(err, repository.ErrExists), ShouldBeTrue)

				u, _ := store.GetUser(ctx, "u1")
				So(u.DisplayName, ShouldEqual, "anna")
			})
		})

		Convey("When fetching an unknown user", func() {
			_, err := store.GetUser(ctx, "ghost")

			Convey("Then it fails with ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When listing users", func() {
			So(store.CreateUser(ctx, newUser("u2", "bruno")), ShouldBeNil)
			So(store.CreateUser(ctx, newUser("u1", "anna")), ShouldBeNil)
			So(store.CreateUser(ctx, newUser("u3", "carla")), ShouldBeNil)

			users, err := store.ListUsers(ctx)

			Convey("Then insertion order is preserved", func() {
				So(err, ShouldBeNil)
				So(len(users), ShouldEqual, 3)
				So(users[0].ID, ShouldEqual, "u2")
				So(users[1].ID, ShouldEqual, "u1")
				So(users[2].ID, ShouldEqual, "u3")
			})
		})
	})
}

func TestMemStoreMarket(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer func() { _ = store.Close() }()

		Convey("When putting a character without an id", func() {
			ch, err := store.PutCharacter(ctx, model.Character{
				Name:     "Gigi",
				Category: model.CategoryCircolo,
				Price:    30,
			})

			Convey("Then an id is assigned", func() {
				So(err, ShouldBeNil)
				So(ch.ID, ShouldNotBeEmpty)

				got, err := store.GetCharacter(ctx, ch.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Gigi")
			})
		})

		Convey("When putting a character with an id", func() {
			_, err := store.PutCharacter(ctx, model.Character{ID: "c1", Name: "Gigi", Category: model.CategoryCircolo, Price: 30})
			So(err, ShouldBeNil)

			Convey("And putting the same id again", func() {
				_, err := store.PutCharacter(ctx, model.Character{ID: "c1", Name: "Gigi", Category: model.CategoryCircolo, Price: 45})
				So(err, ShouldBeNil)

				Convey("Then the item is replaced", func() {
					got, _ := store.GetCharacter(ctx, "c1")
					So(got.Price, ShouldEqual, 45)
				})
			})
		})

		Convey("When listing the market", func() {
			_, _ = store.PutCharacter(ctx, model.Character{ID: "c1", Name: "Pina", Category: model.CategoryCircolo})
			_, _ = store.PutCharacter(ctx, model.Character{ID: "c2", Name: "Gigi", Category: model.CategoryCircolo})
			_, _ = store.PutCharacter(ctx, model.Character{ID: "o1", Name: "Nino", Category: model.CategoryOspite})

			chars, err := store.ListCharacters(ctx)

			Convey("Then items come back ordered by name", func() {
				So(err, ShouldBeNil)
				So(len(chars), ShouldEqual, 3)
				So(chars[0].Name, ShouldEqual, "Gigi")
				So(chars[1].Name, ShouldEqual, "Nino")
				So(chars[2].Name, ShouldEqual, "Pina")
			})
		})

		Convey("When fetching an unknown character", func() {
			_, err := store.GetCharacter(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemStoreApply(t *testing.T) {
	Convey("Given a store with users and a market", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer func() { _ = store.Close() }()

		So(store.CreateUser(ctx, newUser("u1", "anna")), ShouldBeNil)
		So(store.CreateUser(ctx, newUser("u2", "bruno")), ShouldBeNil)
		_, err := store.PutCharacter(ctx, model.Character{ID: "c1", Name: "Gigi", Category: model.CategoryCircolo, Price: 30})
		So(err, ShouldBeNil)

		Convey("When applying a scoring batch", func() {
			b := repository.NewBatch()
			b.CharacterScores["c1"] = 15
			b.Events = append(b.Events, model.Event{
				CharacterID:   "c1",
				CharacterName: "Gigi",
				ActionKey:     "canta",
				ActionLabel:   "🎤 Canta",
				Points:        15,
			})
			b.UserScoreDeltas["u1"] = 15

			So(store.Apply(ctx, b), ShouldBeNil)

			Convey("Then every staged write landed", func() {
				ch, _ := store.GetCharacter(ctx, "c1")
				So(ch.FantaScore, ShouldEqual, 15)

				u, _ := store.GetUser(ctx, "u1")
				So(u.FantaScore, ShouldEqual, 15)

				events, _ := store.ListEvents(ctx)
				So(len(events), ShouldEqual, 1)
				So(events[0].ID, ShouldNotBeEmpty)
				So(events[0].Timestamp.IsZero(), ShouldBeFalse)
			})

			Convey("Then untouched users are unaffected", func() {
				u2, _ := store.GetUser(ctx, "u2")
				So(u2.FantaScore, ShouldEqual, 0)
			})
		})

		Convey("When a batch references a missing user", func() {
			b := repository.NewBatch()
			b.CharacterScores["c1"] = 15
			b.Events = append(b.Events, model.Event{CharacterID: "c1", ActionKey: "canta", Points: 15})
			b.UserScoreDeltas["ghost"] = 15

			err := store.Apply(ctx, b)

			Convey("Then nothing is applied", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				ch, _ := store.GetCharacter(ctx, "c1")
				So(ch.FantaScore, ShouldEqual, 0)

				events, _ := store.ListEvents(ctx)
				So(events, ShouldBeEmpty)
			})
		})

		Convey("When a batch references a missing character", func() {
			b := repository.NewBatch()
			b.CharacterScores["ghost"] = 15
			b.UserScoreDeltas["u1"] = 15

			err := store.Apply(ctx, b)

			Convey("Then nothing is applied", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				u, _ := store.GetUser(ctx, "u1")
				So(u.FantaScore, ShouldEqual, 0)
			})
		})

		Convey("When applying a team commit patch", func() {
			team := model.Team{
				model.CategoryCircolo: {{ID: "c1", Name: "Gigi"}},
				model.CategoryEquipe:  {},
				model.CategoryOspite:  {},
			}
			b := repository.NewBatch()
			b.UserPatches["u1"] = repository.UserPatch{
				SetTeam: true, Team: team,
				SetCredits: true, Credits: 70,
			}

			So(store.Apply(ctx, b), ShouldBeNil)

			Convey("Then team and credits change together", func() {
				u, _ := store.GetUser(ctx, "u1")
				So(u.HasTeam(), ShouldBeTrue)
				So(u.Team.Contains("c1", "Gigi"), ShouldBeTrue)
				So(u.Credits, ShouldEqual, 70)
			})

			Convey("And a reset patch clears team, restores credits and zeroes the score", func() {
				reset := repository.NewBatch()
				reset.UserPatches["u1"] = repository.UserPatch{
					SetTeam: true, Team: nil,
					SetCredits: true, Credits: 100,
					SetScore: true, Score: 0,
				}
				So(store.Apply(ctx, reset), ShouldBeNil)

				u, _ := store.GetUser(ctx, "u1")
				So(u.HasTeam(), ShouldBeFalse)
				So(u.Credits, ShouldEqual, 100)
				So(u.FantaScore, ShouldEqual, 0)
			})
		})

		Convey("When applying absolute score sets", func() {
			b := repository.NewBatch()
			b.UserScoreSets["u1"] = 25
			b.UserScoreSets["u2"] = -5

			So(store.Apply(ctx, b), ShouldBeNil)

			Convey("Then stored totals are replaced, not incremented", func() {
				u1, _ := store.GetUser(ctx, "u1")
				u2, _ := store.GetUser(ctx, "u2")
				So(u1.FantaScore, ShouldEqual, 25)
				So(u2.FantaScore, ShouldEqual, -5)
			})
		})

		Convey("When applying a nil or empty batch", func() {
			So(store.Apply(ctx, nil), ShouldBeNil)
			So(store.Apply(ctx, repository.NewBatch()), ShouldBeNil)
		})
	})
}

func TestMemStoreEvents(t *testing.T) {
	Convey("Given a store with a populated event log", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer func() { _ = store.Close() }()

		_, _ = store.PutCharacter(ctx, model.Character{ID: "c1", Name: "Gigi", Category: model.CategoryCircolo})
		_, _ = store.PutCharacter(ctx, model.Character{ID: "c2", Name: "Pina", Category: model.CategoryCircolo})

		b := repository.NewBatch()
		b.Events = append(b.Events,
			model.Event{CharacterID: "c1", ActionKey: "canta", Points: 15},
			model.Event{CharacterID: "c2", ActionKey: "errore", Points: -10},
			model.Event{CharacterID: "c1", ActionKey: "saluta", Points: 2},
		)
		So(store.Apply(ctx, b), ShouldBeNil)

		Convey("When listing one character's events", func() {
			events, err := store.ListCharacterEvents(ctx, "c1")

			Convey("Then only that character's rows are returned", func() {
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 2)
				for _, ev := range events {
					So(ev.CharacterID, ShouldEqual, "c1")
				}
			})
		})

		Convey("When listing events for an unknown character", func() {
			events, err := store.ListCharacterEvents(ctx, "ghost")
			So(err, ShouldBeNil)
			So(events, ShouldBeEmpty)
		})
	})
}

func TestMemStoreWatchUser(t *testing.T) {
	Convey("Given a store with a user", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer func() { _ = store.Close() }()

		So(store.CreateUser(ctx, newUser("u1", "anna")), ShouldBeNil)

		Convey("When watching an unknown user", func() {
			_, _, err := store.WatchUser(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When watching an existing user", func() {
			ch, cancel, err := store.WatchUser(ctx, "u1")
			So(err, ShouldBeNil)
			defer cancel()

			Convey("And a write touches that user", func() {
				b := repository.NewBatch()
				b.UserScoreDeltas["u1"] = 15
				So(store.Apply(ctx, b), ShouldBeNil)

				Convey("Then the updated document is delivered", func() {
					select {
					case u := <-ch:
						So(u.FantaScore, ShouldEqual, 15)
					case <-time.After(time.Second):
						So("timeout waiting for update", ShouldBeEmpty)
					}
				})
			})

			Convey("And several writes land before the subscriber reads", func() {
				for i := 1; i <= 3; i++ {
					b := repository.NewBatch()
					b.UserScoreSets["u1"] = i * 10
					So(store.Apply(ctx, b), ShouldBeNil)
				}

				Convey("Then the latest state wins", func() {
					select {
					case u := <-ch:
						So(u.FantaScore, ShouldEqual, 30)
					case <-time.After(time.Second):
						So("timeout waiting for update", ShouldBeEmpty)
					}
				})
			})

			Convey("And the subscription is cancelled", func() {
				cancel()

				Convey("Then the channel is closed", func() {
					select {
					case _, open := <-ch:
						So(open, ShouldBeFalse)
					case <-time.After(time.Second):
						So("timeout waiting for close", ShouldBeEmpty)
					}
				})

				Convey("And cancelling twice does not panic", func() {
					So(cancel, ShouldNotPanic)
				})
			})
		})
	})
}
