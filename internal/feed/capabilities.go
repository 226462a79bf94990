package feed

import "github.com/athebyme/gomarket-platform/internal/domain/models"

// Format формат сериализации фида
type Format string

const (
	FormatYML  Format = "yml"
	FormatJSON Format = "json"
)

// Capabilities канально-специфичные особенности выгрузки
type Capabilities struct {
	Format              Format
	EmitOutlets         bool
	EmitDeliveryOptions bool
}

var capabilities = map[models.ChannelType]Capabilities{
	models.ChannelYML:          {Format: FormatYML},
	models.ChannelYandexMarket: {Format: FormatYML, EmitOutlets: true, EmitDeliveryOptions: true},
	models.ChannelJSONCatalog:  {Format: FormatJSON},
}

// CapabilitiesFor возвращает особенности канала, неизвестный канал выгружается как YML
func CapabilitiesFor(channel models.ChannelType) Capabilities {
	if c, ok := capabilities[channel]; ok {
		return c
	}
	return Capabilities{Format: FormatYML}
}
