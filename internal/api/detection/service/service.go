package detectionService

import (
	"EcosnapAI/internal/api/detection"
	detectionRepository "EcosnapAI/internal/api/detection/repository"
	"EcosnapAI/internal/entity"
	"EcosnapAI/pkg/classifier"
	"EcosnapAI/pkg/gemini"
	"EcosnapAI/pkg/metrics"
	"EcosnapAI/pkg/redis"
	"EcosnapAI/pkg/s3"
	"EcosnapAI/pkg/smtp"
	"EcosnapAI/pkg/utils"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IDetectionService interface {
	DetectFromURL(ctx context.Context, imageURL string) (*classifier.Result, error)
	DetectFromBytes(ctx context.Context, data []byte, source string, imageRef string) (*classifier.Result, error)
	GetDetections(ctx context.Context, limit int) ([]entity.WasteDetection, error)
	ModelInfo() detection.ModelInfoResponse
	TriggerTraining(ctx context.Context, req detection.TrainRequest, trigger string) (entity.TrainingRun, error)
	GetTrainingRun(ctx context.Context, id string) (entity.TrainingRun, error)
	GetTrainingRuns(ctx context.Context) ([]entity.TrainingRun, error)
}

type detectionService struct {
	log                 *logrus.Logger
	detectionRepository detectionRepository.Repository
	classifier          *classifier.Classifier
	trainer             *classifier.Trainer
	redis               redis.IRedis
	s3                  s3.ItfS3
	smtp                smtp.ItfSmtp
	gemini              gemini.IGemini
	metrics             *metrics.Metrics
	utils               utils.IUtils
	headPath            string
	training            atomic.Bool
}

// Deps carries the optional integrations. Nil fields disable the
// matching feature instead of failing requests.
type Deps struct {
	Redis   redis.IRedis
	S3      s3.ItfS3
	Smtp    smtp.ItfSmtp
	Gemini  gemini.IGemini
	Metrics *metrics.Metrics
}

func NewDetectionService(
	log *logrus.Logger,
	dr detectionRepository.Repository,
	cls *classifier.Classifier,
	trainer *classifier.Trainer,
	utils utils.IUtils,
	headPath string,
	deps Deps,
) IDetectionService {
	return &detectionService{
		log:                 log,
		detectionRepository: dr,
		classifier:          cls,
		trainer:             trainer,
		redis:               deps.Redis,
		s3:                  deps.S3,
		smtp:                deps.Smtp,
		gemini:              deps.Gemini,
		metrics:             deps.Metrics,
		utils:               utils,
		headPath:            headPath,
	}
}
