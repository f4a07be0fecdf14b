package flow

import (
    "github.com/cowblue-git/farm-telegram-bot/internal/catalog"
    "github.com/cowblue-git/farm-telegram-bot/internal/model"
    "github.com/cowblue-git/farm-telegram-bot/internal/notify"
)

// done marks the end of a flow: the next accepted answer emits a booking.
const done model.Step = ""

// transitions is the step order of each flow.
var transitions = map[model.Flow]map[model.Step]model.Step{
    model.FlowExcursion: {
        model.StepName:    model.StepDate,
        model.StepDate:    model.StepTime,
        model.StepTime:    model.StepPeople,
        model.StepPeople:  model.StepContact,
        model.StepContact: done,
    },
    model.FlowEvent: {
        model.StepChooseEvent: model.StepName,
        model.StepName:        model.StepPeople,
        model.StepPeople:      model.StepContact,
        model.StepContact:     done,
    },
}

// nextStep returns the step after cur, and false when cur is not part of f.
func nextStep(f model.Flow, cur model.Step) (model.Step, bool) {
    steps, ok := transitions[f]
    if !ok {
        return done, false
    }
    next, ok := steps[cur]
    return next, ok
}

// firstStep is where a fresh session of f starts.
func firstStep(f model.Flow) model.Step {
    if f == model.FlowEvent {
        return model.StepChooseEvent
    }
    return model.StepName
}

func mainMenu() *notify.Keyboard {
    return &notify.Keyboard{Reply: [][]string{
        {catalog.BtnExcursion},
        {catalog.BtnEvents},
        {catalog.BtnAbout, catalog.BtnPrices},
        {catalog.BtnAddress, catalog.BtnContacts},
    }}
}

func resetOnly() *notify.Keyboard {
    return &notify.Keyboard{Reply: [][]string{{catalog.BtnReset}}}
}

func (e *Engine) eventsKeyboard() *notify.Keyboard {
    kb := notify.ReplyRows(e.Catalog.Labels(), 1)
    kb.Reply = append(kb.Reply, []string{catalog.BtnMainMenu})
    return kb
}

func peopleKeyboard(f model.Flow) *notify.Keyboard {
    kb := &notify.Keyboard{Reply: [][]string{{"1", "2", "3"}, {"4", "5", "6"}}}
    if f == model.FlowExcursion {
        kb.Reply = append(kb.Reply, []string{catalog.PeopleBand, catalog.PeopleMany})
    }
    kb.Reply = append(kb.Reply, []string{catalog.BtnReset})
    return kb
}

// prompt returns the question and keyboard for step in flow f.
func (e *Engine) prompt(f model.Flow, step model.Step) (string, *notify.Keyboard) {
    switch step {
    case model.StepChooseEvent:
        return catalog.PromptChooseEvent, e.eventsKeyboard()
    case model.StepName:
        return catalog.PromptName, resetOnly()
    case model.StepDate:
        return catalog.PromptDate, resetOnly()
    case model.StepTime:
        return catalog.PromptTime, resetOnly()
    case model.StepPeople:
        if f == model.FlowExcursion {
            return catalog.PromptPeopleExcursion, peopleKeyboard(f)
        }
        return catalog.PromptPeopleEvent, peopleKeyboard(f)
    case model.StepContact:
        return catalog.PromptContact, resetOnly()
    }
    return catalog.TextMainMenu, mainMenu()
}

// reprompt returns the rejection text for step together with its keyboard.
func (e *Engine) reprompt(f model.Flow, step model.Step, empty bool) (string, *notify.Keyboard) {
    _, kb := e.prompt(f, step)
    if empty {
        return catalog.RepromptEmpty, kb
    }
    switch step {
    case model.StepChooseEvent:
        return catalog.RepromptChooseEvent, kb
    case model.StepPeople:
        return catalog.RepromptPeople, kb
    case model.StepContact:
        return catalog.RepromptContact, kb
    case model.StepName, model.StepDate, model.StepTime:
        return catalog.RepromptEmpty, kb
    }
    return catalog.RepromptEmpty, kb
}
