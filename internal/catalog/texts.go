package catalog

// Menu buttons.  The flow engine matches inbound text against these
// exact strings, so changing one changes the trigger too.
const (
    BtnExcursion = "📝 Записаться на экскурсию"
    BtnEvents    = "🎄 Праздничные события"
    BtnAbout     = "🐄 Об экскурсиях"
    BtnPrices    = "💰 Цены"
    BtnAddress   = "📍 Как добраться"
    BtnContacts  = "📞 Контакты"
    BtnMainMenu  = "🏠 Главное меню"
    BtnReset     = "❌ Отменить"
)

// Party size buttons for the excursion flow.  PeopleBand and PeopleMany
// are shown to the requester; the stored values are canonical forms.
const (
    PeopleBand          = "6–10"
    PeopleMany          = "более 11"
    PeopleBandCanonical = "6-10"
    PeopleManyCanonical = "11+"
)

// Informational texts, keyed by menu button.
var Info = map[string]string{
    BtnAbout: "🐄 Экскурсия по ферме длится около двух часов: знакомство с коровами и козами, " +
        "кормление животных, экскурсия на сыроварню и дегустация. Подходит для детей от 3 лет.",
    BtnPrices: "💰 Взрослый билет — 900 ₽, детский (3–12 лет) — 600 ₽, до 3 лет — бесплатно.\n" +
        "Группы от 11 человек — скидка 10%. Праздничные программы оплачиваются отдельно.",
    BtnAddress: "📍 Московская область, д. Синяя Корова, ул. Полевая, 1.\n" +
        "От станции «Ольгино» ходит автобус № 23, остановка «Ферма».",
    BtnContacts: "📞 +7 (999) 000-12-34, ежедневно с 9:00 до 19:00.\nПишите нам: @cowblue_farm",
}

const (
    TextWelcome      = "Здравствуйте! Это бот фермы «Синяя Корова» 🐄\nВыберите, что вас интересует:"
    TextMainMenu     = "Главное меню. Выберите пункт:"
    TextIdleFallback = "Спасибо за сообщение! Чтобы записаться или узнать подробности, выберите пункт меню."
    TextReset        = "Запись отменена. Возвращаемся в главное меню."
    TextStoreFailure = "Что-то пошло не так, попробуйте ещё раз чуть позже."

    PromptChooseEvent     = "Выберите праздничное событие:"
    PromptName            = "Как вас зовут?"
    PromptDate            = "На какую дату планируете экскурсию? Например: 15 июня."
    PromptTime            = "Во сколько вам удобно приехать? Например: 11:00."
    PromptPeopleExcursion = "Сколько будет человек? Выберите вариант на клавиатуре."
    PromptPeopleEvent     = "Сколько будет человек?"
    PromptContact         = "Оставьте контакт для связи: @username или номер телефона."

    RepromptEmpty         = "Пожалуйста, напишите ответ текстом."
    RepromptPeople        = "Пожалуйста, выберите количество человек кнопкой на клавиатуре."
    RepromptContact       = "Не похоже на контакт. Укажите @username (от 4 до 32 символов: буквы, цифры, _) или телефон из 10–15 цифр, например +7 999 123-45-67."
    RepromptChooseEvent   = "Пожалуйста, выберите событие кнопкой на клавиатуре."
    NoticeEventFull       = "К сожалению, на «%s» все места уже заняты 😔 Загляните в другие события."
    NoticeEventNotFound   = "Такое событие не найдено. Посмотрите список праздничных событий в меню."
    NoticeNoEvents        = "Сейчас нет событий с открытой записью."

    TextBookingAccepted = "Спасибо! Заявка №%s принята ✅\nМы свяжемся с вами для подтверждения."
    TextBookingNotSaved = "Не удалось сохранить заявку. Пожалуйста, отправьте контакт ещё раз."
)

// Operator-side texts.
const (
    BtnConfirm = "✅ Подтвердить"
    BtnDecline = "❌ Отклонить"

    OperatorNewBooking   = "🆕 Новая заявка №%s"
    NoticeForbidden      = "⛔ Недостаточно прав для этого действия."
    NoticeNotFound       = "Заявка не найдена."
    NoticeAlreadyDone    = "Заявка уже %s."
    NoticeBusy           = "Заявка уже обрабатывается, попробуйте через несколько секунд."
    NoticeInvalidPeople  = "В заявке не указано корректное количество человек."
    NoticeNoSeats        = "Недостаточно мест: свободно %d."
    NoticeUnknownAction  = "Неизвестное действие."
    NoticeUnknownEvent   = "Событие заявки не найдено в каталоге."
    NoticeFailure        = "Не удалось обработать заявку, попробуйте ещё раз."
    NoticeConfirmed      = "Заявка подтверждена."
    NoticeCancelled      = "Заявка отклонена."
    OperatorConfirmed    = "✅ Подтверждено"
    OperatorCancelled    = "❌ Отклонено"
    StatusWordConfirmed  = "подтверждена"
    StatusWordCancelled  = "отклонена"
    StatusWordNew        = "новая"

    RequesterConfirmedEvent     = "🎉 Ваша заявка подтверждена!\n%s\n📅 %s\n👥 %d чел.\nЖдём вас на ферме!"
    RequesterConfirmedExcursion = "🎉 Ваша заявка на экскурсию подтверждена!\n📅 %s, %s\n👥 %s\nЖдём вас на ферме!"
    RequesterCancelled          = "К сожалению, мы не можем принять вашу заявку №%s. " +
        "Если это неожиданно, свяжитесь с нами: +7 (999) 000-12-34 или @cowblue_farm."

    SummaryHeader = "📊 Праздничные события:"
    SummaryOpen   = "открыто"
    SummaryClosed = "закрыто"
    RosterHeader  = "📋 Заявки на «%s» (%s):"
    RosterEmpty   = "Заявок пока нет."
    RosterPick    = "Выберите событие для списка заявок:"
)
