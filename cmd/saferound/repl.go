package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/reaction"
	"github.com/mmynk/saferound/internal/session"
)

const replHelp = `commands:
  drink GRAMS       log a drink with a known alcohol mass
  std               log a standard drink (14 g)
  scan JSON         log a drink from a tag payload
  undo              remove the most recent drink
  bio KG SEX        set weight and sex (male|female)
  estimate          estimate BAC now
  react             start the reaction test or press
  redo              restart a finished reaction test
  create [NAME]     create a group and make it active
  join CODE         join a group by its 6-digit code
  members           refresh and show the active group
  leave             stop following the active group
  notify            send your BAC to the active group
  alert USER_ID     send your BAC to one member
  quit`

// syncWriter serializes writes from the prompt loop and timer callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) println(a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, a...)
}

func (s *syncWriter) print(a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprint(s.w, a...)
}

type repl struct {
	sess *session.Session
	out  *syncWriter
}

// reactionObserver prints the GO signal, which arrives from a timer callback
// rather than from a command.
func reactionObserver(out *syncWriter) reaction.Option {
	return reaction.WithObserver(func(s reaction.Snapshot) {
		if s.State == reaction.Ready && !s.Pausing {
			out.println(renderSnapshot(s))
		}
	})
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	r.out.print(promptStyle.Render("saferound> "))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			quit, err := r.exec(ctx, line)
			if err != nil {
				r.out.println(errorStyle.Render(err.Error()))
			}
			if quit {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		r.out.print(promptStyle.Render("saferound> "))
	}
	return sc.Err()
}

func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		r.out.println(replHelp)
	case "drink":
		if len(args) != 1 {
			return false, errors.New("usage: drink GRAMS")
		}
		grams, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return false, fmt.Errorf("invalid grams %q", args[0])
		}
		ev, err := r.sess.AddDrink(grams)
		if err != nil {
			return false, err
		}
		r.logged(ev)
	case "std":
		r.logged(r.sess.AddStandardDrink())
	case "scan":
		ev, err := r.sess.Scan([]byte(strings.TrimSpace(strings.TrimPrefix(line, name))))
		if err != nil {
			return false, err
		}
		r.logged(ev)
	case "undo":
		ev, ok := r.sess.UndoDrink()
		if !ok {
			r.out.println(mutedStyle.Render("Nothing to undo."))
			return false, nil
		}
		r.out.println(fmt.Sprintf("Removed %.1f g, %d left", ev.MassGrams, r.sess.Ledger().Len()))
	case "bio":
		if len(args) != 2 {
			return false, errors.New("usage: bio KG SEX")
		}
		weight, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return false, fmt.Errorf("invalid weight %q", args[0])
		}
		sex, err := models.ParseSex(args[1])
		if err != nil {
			return false, err
		}
		if err := r.sess.SetBiometrics(models.UserBiometrics{WeightKg: weight, Sex: sex}); err != nil {
			return false, err
		}
		r.out.println(mutedStyle.Render("Biometrics saved."))
	case "estimate":
		res, err := r.sess.Estimate(ctx)
		if errors.Is(err, session.ErrSuperseded) {
			r.out.println(mutedStyle.Render("Drinks changed while estimating, showing the previous reading."))
		} else if err != nil {
			return false, err
		}
		r.out.println(renderResult(res))
	case "react":
		r.out.println(renderSnapshot(r.sess.Reaction().Press()))
	case "redo":
		r.out.println(renderSnapshot(r.sess.Reaction().Redo()))
	case "create":
		roster, err := r.sess.Groups().CreateGroup(ctx, r.sess.UserID(), strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		r.out.println(renderRoster(roster))
	case "join":
		if len(args) != 1 {
			return false, errors.New("usage: join CODE")
		}
		roster, err := r.sess.Groups().JoinGroup(ctx, args[0], r.sess.UserID())
		if err != nil {
			return false, err
		}
		r.out.println(renderRoster(roster))
	case "members":
		_, err := r.sess.Groups().RefreshMembers(ctx)
		if roster, ok := r.sess.Groups().Roster(); ok {
			r.out.println(renderRoster(roster))
		}
		return false, err
	case "leave":
		r.sess.Groups().LeaveGroup()
		r.out.println(mutedStyle.Render("Left the group."))
	case "notify":
		toast, err := r.sess.NotifyGroup(ctx)
		if err != nil {
			return false, err
		}
		r.out.println(renderToast(toast))
	case "alert":
		if len(args) != 1 {
			return false, errors.New("usage: alert USER_ID")
		}
		toast, err := r.sess.AlertMember(ctx, args[0])
		if err != nil {
			return false, err
		}
		r.out.println(renderToast(toast))
	default:
		return false, fmt.Errorf("unknown command %q, type help", name)
	}
	return false, nil
}

func (r *repl) logged(ev models.DrinkEvent) {
	r.out.println(fmt.Sprintf("Logged %.1f g %s", ev.MassGrams,
		mutedStyle.Render(fmt.Sprintf("(%d drinks)", r.sess.Ledger().Len()))))
}
