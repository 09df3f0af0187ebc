package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo хранит состояние диалога и настройки чата в одной строке
// dialog_states. Состояние и настройки меняются независимо: смена шага
// диалога не трогает payload, сохранение настроек не читает его заранее.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, chatID int64) (*Item, error) {
	it := &Item{ChatID: chatID, State: StateIdle, Payload: Payload{}}
	var state string
	err := r.pool.QueryRow(ctx,
		`SELECT state, payload FROM dialog_states WHERE chat_id = $1`, chatID,
	).Scan(&state, &it.Payload)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return it, nil
	case err != nil:
		return nil, fmt.Errorf("get dialog state %d: %w", chatID, err)
	}
	it.State = State(state)
	if it.Payload == nil {
		it.Payload = Payload{}
	}
	return it, nil
}

// SetState переводит чат на шаг state, payload остаётся прежним.
func (r *Repo) SetState(ctx context.Context, chatID int64, state State) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dialog_states (chat_id, state)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = now()
	`, chatID, string(state))
	if err != nil {
		return fmt.Errorf("set dialog state %d: %w", chatID, err)
	}
	return nil
}

// SaveSettings дописывает настройки в payload и возвращает чат в idle.
func (r *Repo) SaveSettings(ctx context.Context, chatID int64, s Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dialog_states (chat_id, state, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE
		SET state = EXCLUDED.state,
		    payload = dialog_states.payload || EXCLUDED.payload,
		    updated_at = now()
	`, chatID, string(StateIdle), Payload{}.WithSettings(s))
	if err != nil {
		return fmt.Errorf("save settings %d: %w", chatID, err)
	}
	return nil
}

// ResetSettings убирает настройки чата, дальше действуют значения по умолчанию.
func (r *Repo) ResetSettings(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dialog_states
		SET payload = payload - $2::text - $3::text, state = $4, updated_at = now()
		WHERE chat_id = $1
	`, chatID, KeyCableLength, KeyVoltage, string(StateIdle))
	if err != nil {
		return fmt.Errorf("reset settings %d: %w", chatID, err)
	}
	return nil
}
